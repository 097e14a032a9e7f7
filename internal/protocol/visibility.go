package protocol

// Concealable 带有仅发起者可见字段的动作
type Concealable interface {
	Action
	RequestedBy() int
	// Concealed 返回隐藏了身份字段的副本，原对象不变
	Concealed() Action
}

func (p *MovePayload) RequestedBy() int { return p.Requestor }
func (p *SearchPayload) RequestedBy() int { return p.Requestor }
func (p *RestartPayload) RequestedBy() int { return p.Requestor }

func (p *MovePayload) Concealed() Action {
	c := *p
	c.CardID = nil
	return &c
}

func (p *SearchPayload) Concealed() Action {
	c := *p
	c.CardIDs = nil
	return &c
}

func (p *RestartPayload) Concealed() Action {
	c := *p
	c.IDs = nil
	return &c
}
