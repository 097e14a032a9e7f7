package deck

import (
	"fmt"
	"strings"
)

// HardMaxCards 无论配置如何，单个牌组都不能超过的张数
const HardMaxCards = 1000

// InvalidDeckError 牌组不合法
type InvalidDeckError struct {
	Reason string
}

func (e *InvalidDeckError) Error() string {
	return "牌组不合法: " + e.Reason
}

// Checker 牌组合法性检查
type Checker interface {
	Check(d Deck) error
}

// CheckerFunc 函数适配器
type CheckerFunc func(d Deck) error

func (f CheckerFunc) Check(d Deck) error { return f(d) }

// basicLands 不受数量上限限制的基本地
var basicLands = map[string]struct{}{
	"plains":   {},
	"island":   {},
	"swamp":    {},
	"mountain": {},
	"forest":   {},
	"wastes":   {},
}

// IsBasicLand 是否为基本地（含雪境基本地）
func IsBasicLand(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "snow-covered ")
	_, ok := basicLands[n]
	return ok
}

// StandardChecker 构筑规则：张数范围与同名上限
type StandardChecker struct {
	MinCards  int
	MaxCards  int // <= 0 或超过 HardMaxCards 时按 HardMaxCards 处理
	MaxCopies int
}

func (c StandardChecker) maxCards() int {
	if c.MaxCards <= 0 || c.MaxCards > HardMaxCards {
		return HardMaxCards
	}
	return c.MaxCards
}

// Check 校验牌组
func (c StandardChecker) Check(d Deck) error {
	if len(d.Cards) == 0 {
		return &InvalidDeckError{Reason: "牌组为空"}
	}

	limit := c.maxCards()
	size := 0
	copies := make(map[string]int, len(d.Cards))
	for _, e := range d.Cards {
		if strings.TrimSpace(e.Name) == "" {
			return &InvalidDeckError{Reason: "存在空卡名"}
		}
		if e.Quantity <= 0 {
			return &InvalidDeckError{Reason: fmt.Sprintf("%s 数量无效: %d", e.Name, e.Quantity)}
		}
		// 单项先与上限比较，累加不会溢出
		if e.Quantity > limit || size+e.Quantity > limit {
			return &InvalidDeckError{Reason: fmt.Sprintf("最多 %d 张牌", limit)}
		}
		size += e.Quantity
		copies[strings.ToLower(e.Name)] += e.Quantity
	}

	if size < c.MinCards {
		return &InvalidDeckError{Reason: fmt.Sprintf("至少需要 %d 张牌，当前 %d 张", c.MinCards, size)}
	}

	if c.MaxCopies > 0 {
		for _, e := range d.Cards {
			if IsBasicLand(e.Name) {
				continue
			}
			if n := copies[strings.ToLower(e.Name)]; n > c.MaxCopies {
				return &InvalidDeckError{Reason: fmt.Sprintf("%s 超过 %d 张上限 (%d)", e.Name, c.MaxCopies, n)}
			}
		}
	}
	return nil
}
