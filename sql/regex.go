package sql

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

// regexCacheSize borne le nombre d'expressions compilées conservées.
const regexCacheSize = 256

var regexCache, _ = lru.New[string, *regexp.Regexp](regexCacheSize)

// Compile retourne l'expression compilée, depuis le cache si possible.
func (r Regex) Compile() (*regexp.Regexp, error) {
	if re, ok := regexCache.Get(r.Source); ok {
		return re, nil
	}
	re, err := regexp.Compile(r.Source)
	if err != nil {
		return nil, err
	}
	regexCache.Add(r.Source, re)
	return re, nil
}

// Match indique si le texte correspond à l'expression. Une expression
// invalide ne correspond à rien.
func (r Regex) Match(s string) bool {
	re, err := r.Compile()
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
