package objectstore

// KeyRange is an interval of keys. The lower bound is always set, the empty
// string being the smallest key. The upper bound is optional; without it the
// range extends to the end of the keyspace.
type KeyRange struct {
	Lower     string
	Upper     string
	HasUpper  bool
	LowerOpen bool // Lower itself is excluded
	UpperOpen bool // Upper itself is excluded
}

// Bound returns the range between lower and upper.
func Bound(lower, upper string, lowerOpen, upperOpen bool) KeyRange {
	return KeyRange{
		Lower:     lower,
		Upper:     upper,
		HasUpper:  true,
		LowerOpen: lowerOpen,
		UpperOpen: upperOpen,
	}
}

// LowerBound returns the range of all keys from lower to the end of the keyspace.
func LowerBound(lower string, open bool) KeyRange {
	return KeyRange{
		Lower:     lower,
		LowerOpen: open,
	}
}

// Only returns the range that contains exactly key.
func Only(key string) KeyRange {
	return Bound(key, key, false, false)
}

// All returns the range of every key.
func All() KeyRange {
	return LowerBound("", false)
}

// AboveLower reports whether key satisfies the lower bound.
func (r KeyRange) AboveLower(key string) bool {
	if r.LowerOpen {
		return key > r.Lower
	}
	return key >= r.Lower
}

// BelowUpper reports whether key satisfies the upper bound.
func (r KeyRange) BelowUpper(key string) bool {
	if !r.HasUpper {
		return true
	}
	if r.UpperOpen {
		return key < r.Upper
	}
	return key <= r.Upper
}

// Contains reports whether key is inside the range.
func (r KeyRange) Contains(key string) bool {
	return r.AboveLower(key) && r.BelowUpper(key)
}

// Empty reports whether no key can be inside the range.
func (r KeyRange) Empty() bool {
	if !r.HasUpper {
		return false
	}
	if r.Lower == r.Upper {
		return r.LowerOpen || r.UpperOpen
	}
	return r.Lower > r.Upper
}
