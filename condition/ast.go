package condition

type node interface {
	eval(env Env) (any, error)
}

type literal struct {
	value any
}

// identifier is a dotted name such as status, source.score or context.campaign.budget.
type identifier struct {
	name string
}

// jsonPath is a $.path lookup against the process context.
type jsonPath struct {
	path string
}

type unary struct {
	op      string
	operand node
}

type binary struct {
	op          string
	left, right node
}
