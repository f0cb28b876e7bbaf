package domain

// Commit is the outcome of a version-gated write. A write that lost the
// race is not an error: Applied is false and Actual holds the version that
// was found in storage.
type Commit struct {
	Card    Card
	Applied bool
	Actual  int64
}

// AppliedCommit wraps a successful write.
func AppliedCommit(c Card) Commit {
	return Commit{Card: c, Applied: true, Actual: c.Version}
}

// Conflicted reports a write rejected because storage held version actual.
func Conflicted(actual int64) Commit {
	return Commit{Actual: actual}
}
