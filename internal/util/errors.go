package util

// IgnoreError calls fn and drops the error it returns.  Example: `defer util.IgnoreError(file.Close)`
func IgnoreError(fn func() error) {
	_ = fn()
}

// CLose calls closer and stores its error in *err unless an earlier error is already there.
// Meant for deferred closes in functions with a named error result.
func CLose(err *error, closer func() error) {
	cerr := closer()
	if *err == nil {
		*err = cerr
	}
}
