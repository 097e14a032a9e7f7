// Package game 维护一局对战中所有卡牌实例所在的区域。
// 所有操作都在同一把锁下完成，可被多个监听协程并发调用。
package game

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/palemoky/magic-table/internal/game/deck"
)

const defaultStartingLife = 20

// Card 一张卡牌实例
type Card struct {
	ID    string
	Name  string
	Owner int
}

// playerZones 单个玩家的私有区域
type playerZones struct {
	library   []*Card // 下标 0 为牌库顶
	hand      []*Card
	graveyard []*Card
	exiled    []*Card
	health    int
	poison    int
	alive     bool
}

// Game 对局状态
type Game struct {
	mu      sync.Mutex
	cards   []*Card // 按创建顺序保存全部实例
	players []*playerZones
	table   []*Card // 战场，所有玩家共享

	rng   *rand.Rand
	newID func() string
	life  int
}

// Option 对局选项
type Option func(*Game)

// WithRand 指定随机源（测试用固定种子）
func WithRand(r *rand.Rand) Option {
	return func(g *Game) { g.rng = r }
}

// WithIDGenerator 指定卡牌 ID 生成器
func WithIDGenerator(f func() string) Option {
	return func(g *Game) { g.newID = f }
}

// WithStartingLife 指定初始生命
func WithStartingLife(n int) Option {
	return func(g *Game) { g.life = n }
}

// New 根据各玩家牌组创建对局，每个玩家的牌全部进入其牌库（未洗牌）
func New(decks []deck.Deck, opts ...Option) *Game {
	g := &Game{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		newID: uuid.NewString,
		life:  defaultStartingLife,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.players = make([]*playerZones, len(decks))
	for p, d := range decks {
		pz := &playerZones{health: g.life, alive: true}
		for _, name := range d.Expand() {
			c := &Card{ID: g.newID(), Name: name, Owner: p}
			g.cards = append(g.cards, c)
			pz.library = append(pz.library, c)
		}
		g.players[p] = pz
	}
	return g
}

// Players 玩家数
func (g *Game) Players() int {
	return len(g.players)
}

// AllCards 全部卡牌实例
func (g *Game) AllCards() []Card {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Card, len(g.cards))
	for i, c := range g.cards {
		out[i] = *c
	}
	return out
}

// player 返回存活玩家的区域，调用方需持有锁
func (g *Game) player(p int) *playerZones {
	if p < 0 || p >= len(g.players) || !g.players[p].alive {
		return nil
	}
	return g.players[p]
}

// Alive 玩家是否仍在对局中
func (g *Game) Alive(p int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.player(p) != nil
}

// --- 牌库 ---

// LibrarySize 牌库张数
func (g *Game) LibrarySize(p int) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return 0
	}
	return len(pz.library)
}

// LibraryShuffle 洗牌
func (g *Game) LibraryShuffle(p int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return false
	}
	g.shuffle(pz.library)
	return true
}

func (g *Game) shuffle(cards []*Card) {
	g.rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// LibraryDraw 抓牌库顶一张进手牌
func (g *Game) LibraryDraw(p int) (Card, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil || len(pz.library) == 0 {
		return Card{}, false
	}
	c := pz.library[0]
	pz.library = pz.library[1:]
	pz.hand = append(pz.hand, c)
	return *c, true
}

// LibraryPlayTop 将牌库顶一张正面放到战场
func (g *Game) LibraryPlayTop(p int) (Card, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil || len(pz.library) == 0 {
		return Card{}, false
	}
	c := pz.library[0]
	pz.library = pz.library[1:]
	g.table = append(g.table, c)
	return *c, true
}

// LibraryTop 查看牌库顶
func (g *Game) LibraryTop(p int) (Card, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil || len(pz.library) == 0 {
		return Card{}, false
	}
	return *pz.library[0], true
}

// LibrarySearch 返回牌库顶 amount 张的 ID，amount 为 -1 或超过牌库张数时返回全部
func (g *Game) LibrarySearch(p, amount int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return nil
	}
	if amount < 0 || amount > len(pz.library) {
		amount = len(pz.library)
	}
	return ids(pz.library[:amount])
}

// LibraryPlay 从牌库任意位置取出指定牌放到战场
func (g *Game) LibraryPlay(p int, cardID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return false
	}
	c, ok := take(&pz.library, cardID)
	if !ok {
		return false
	}
	g.table = append(g.table, c)
	return true
}

// --- 手牌 / 战场 ---

// HandPlay 从手牌打出到战场
func (g *Game) HandPlay(p int, cardID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return false
	}
	c, ok := take(&pz.hand, cardID)
	if !ok {
		return false
	}
	g.table = append(g.table, c)
	return true
}

// TableTake 从战场收回到 p 的手牌
func (g *Game) TableTake(p int, cardID string) bool {
	return g.fromTable(p, cardID, func(pz *playerZones, c *Card) {
		pz.hand = append(pz.hand, c)
	})
}

// TableDestroy 从战场进入 p 的坟墓场
func (g *Game) TableDestroy(p int, cardID string) bool {
	return g.fromTable(p, cardID, func(pz *playerZones, c *Card) {
		pz.graveyard = append(pz.graveyard, c)
	})
}

// TableExile 从战场放逐
func (g *Game) TableExile(p int, cardID string) bool {
	return g.fromTable(p, cardID, func(pz *playerZones, c *Card) {
		pz.exiled = append(pz.exiled, c)
	})
}

// TablePutOnTopOfLibrary 从战场放回 p 的牌库顶
func (g *Game) TablePutOnTopOfLibrary(p int, cardID string) bool {
	return g.fromTable(p, cardID, func(pz *playerZones, c *Card) {
		pz.library = append([]*Card{c}, pz.library...)
	})
}

func (g *Game) fromTable(p int, cardID string, place func(*playerZones, *Card)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return false
	}
	c, ok := take(&g.table, cardID)
	if !ok {
		return false
	}
	place(pz, c)
	return true
}

// --- 公开区域 ---

// GraveyardView 坟墓场全部 ID
func (g *Game) GraveyardView(p int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pz := g.player(p); pz != nil {
		return ids(pz.graveyard)
	}
	return nil
}

// ExiledView 放逐区全部 ID
func (g *Game) ExiledView(p int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pz := g.player(p); pz != nil {
		return ids(pz.exiled)
	}
	return nil
}

// --- 指示物 ---

// SetHealth 设置生命
func (g *Game) SetHealth(p, v int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return false
	}
	pz.health = v
	return true
}

// SetPoison 设置中毒指示物
func (g *Game) SetPoison(p, v int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return false
	}
	pz.poison = v
	return true
}

// --- 生命周期 ---

// Restart 手牌洗回牌库后重新抓 n 张，返回新手牌 ID
func (g *Game) Restart(p, n int) ([]string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return nil, false
	}
	pz.library = append(pz.library, pz.hand...)
	pz.hand = nil
	g.shuffle(pz.library)

	n = min(n, len(pz.library))
	pz.hand = append(pz.hand, pz.library[:n]...)
	pz.library = slices.Clone(pz.library[n:])
	return ids(pz.hand), true
}

// Kill 移除玩家：清空其私有区域以及其拥有的战场卡牌
func (g *Game) Kill(p int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pz := g.player(p)
	if pz == nil {
		return
	}
	reaped := make(map[string]struct{})
	for _, zone := range [][]*Card{pz.library, pz.hand, pz.graveyard, pz.exiled} {
		for _, c := range zone {
			reaped[c.ID] = struct{}{}
		}
	}
	pz.library, pz.hand, pz.graveyard, pz.exiled = nil, nil, nil, nil

	g.table = slices.DeleteFunc(g.table, func(c *Card) bool {
		if c.Owner == p {
			reaped[c.ID] = struct{}{}
			return true
		}
		return false
	})
	g.cards = slices.DeleteFunc(g.cards, func(c *Card) bool {
		_, ok := reaped[c.ID]
		return ok
	})
	pz.alive = false
}

// take 从区域中取出指定 ID 的牌
func take(zone *[]*Card, cardID string) (*Card, bool) {
	i := slices.IndexFunc(*zone, func(c *Card) bool { return c.ID == cardID })
	if i < 0 {
		return nil, false
	}
	c := (*zone)[i]
	*zone = slices.Delete(*zone, i, i+1)
	return c, true
}

func ids(cards []*Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}
