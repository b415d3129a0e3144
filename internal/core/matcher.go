package core

// Matches reports whether the submitted code is exactly the solution.
// No whitespace or syntax normalization is applied.
func Matches(currentCode, solution string) bool {
	return currentCode == solution
}
