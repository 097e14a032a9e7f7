package game

// PlayerSnapshot 单个玩家区域快照
type PlayerSnapshot struct {
	Library   []string
	Hand      []string
	Graveyard []string
	Exiled    []string
	Health    int
	Poison    int
	Alive     bool
}

// Snapshot 对局快照，用于写入会话记录和比较状态是否变化
type Snapshot struct {
	Players []PlayerSnapshot
	Table   []string
	Cards   int
}

// Snapshot 生成当前状态的深拷贝
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Players: make([]PlayerSnapshot, len(g.players)),
		Table:   ids(g.table),
		Cards:   len(g.cards),
	}
	for i, pz := range g.players {
		s.Players[i] = PlayerSnapshot{
			Library:   ids(pz.library),
			Hand:      ids(pz.hand),
			Graveyard: ids(pz.graveyard),
			Exiled:    ids(pz.exiled),
			Health:    pz.health,
			Poison:    pz.poison,
			Alive:     pz.alive,
		}
	}
	return s
}
