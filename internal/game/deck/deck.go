package deck

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// Entry 牌组中的一行：卡名与数量
type Entry struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Deck 定义一副牌组，按录入顺序保存
type Deck struct {
	Name  string  `json:"name"`
	Cards []Entry `json:"cards"`
}

// Size 牌组总张数
func (d Deck) Size() int {
	n := 0
	for _, e := range d.Cards {
		if e.Quantity > 0 && n > math.MaxInt-e.Quantity {
			return math.MaxInt
		}
		n += e.Quantity
	}
	return n
}

// Names 去重后的卡名，保持首次出现顺序
func (d Deck) Names() []string {
	seen := make(map[string]struct{}, len(d.Cards))
	names := make([]string, 0, len(d.Cards))
	for _, e := range d.Cards {
		key := strings.ToLower(e.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, e.Name)
	}
	return names
}

// Expand 展开为逐张卡名
func (d Deck) Expand() []string {
	out := make([]string, 0, d.Size())
	for _, e := range d.Cards {
		for range e.Quantity {
			out = append(out, e.Name)
		}
	}
	return out
}

// WriteTo 以文本格式写出，每行 "<数量> <卡名>"
func (d Deck) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	if d.Name != "" {
		fmt.Fprintf(&sb, "# %s\n", d.Name)
	}
	for _, e := range d.Cards {
		fmt.Fprintf(&sb, "%d %s\n", e.Quantity, e.Name)
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// String 文本格式
func (d Deck) String() string {
	var sb strings.Builder
	_, _ = d.WriteTo(&sb)
	return sb.String()
}
