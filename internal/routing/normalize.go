package routing

import (
	"regexp"
	"strings"
)

var (
	punctuation = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()]")
	whitespace  = regexp.MustCompile(`\s+`)
)

// Normalizer canonicalizes party names so aliases and targets compare equal
type Normalizer struct {
	suffixes []string
}

// NewNormalizer creates a Normalizer that strips the given trailing legal suffixes
func NewNormalizer(legalSuffixes []string) *Normalizer {
	n := &Normalizer{}
	for _, s := range legalSuffixes {
		if s = n.clean(s); s != "" {
			n.suffixes = append(n.suffixes, s)
		}
	}
	return n
}

// Normalize uppercases, strips punctuation, collapses whitespace and drops trailing legal suffixes
func (n *Normalizer) Normalize(name string) string {
	s := n.clean(name)

	for stripped := true; stripped && s != ""; {
		stripped = false
		for _, suffix := range n.suffixes {
			if s == suffix {
				continue
			}
			if strings.HasSuffix(s, " "+suffix) {
				s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
				stripped = true
			}
		}
	}

	return s
}

func (n *Normalizer) clean(name string) string {
	s := strings.ToUpper(name)
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
