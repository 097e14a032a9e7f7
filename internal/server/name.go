package server

import "regexp"

const (
	defaultPlayerName = "PLAYER"
	maxNameLength     = 15
	collisionSuffix   = "-"
)

var nonWord = regexp.MustCompile(`\W`)

// sanitizeName 去掉非单词字符并截断，空名使用默认名
func sanitizeName(name string) string {
	name = nonWord.ReplaceAllString(name, "")
	if name == "" {
		return defaultPlayerName
	}
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}

// uniqueName 与已占用的名字冲突时不断追加后缀，调用方需持有 s.mu
func (s *Server) uniqueName(name string) string {
	for s.nameTaken(name) {
		name += collisionSuffix
	}
	return name
}

func (s *Server) nameTaken(name string) bool {
	for _, sl := range s.slots {
		if sl != nil && sl.name == name {
			return true
		}
	}
	return false
}
