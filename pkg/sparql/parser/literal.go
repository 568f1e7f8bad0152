package parser

import "github.com/cuemby/mercury/pkg/mterm"

func boolLiteral(b bool) mterm.Term {
	if b {
		return mterm.TypedLiteral("true", mterm.XSDBoolean)
	}
	return mterm.TypedLiteral("false", mterm.XSDBoolean)
}
