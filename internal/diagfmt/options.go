package diagfmt

// PrettyOpts configures pretty-printing of problems.
type PrettyOpts struct {
	Color   bool
	Context int8 // дополнительные строки вокруг подчёркнутой, 0 - только она
}
