package database

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLikePattern escapes LIKE/ILIKE wildcards in user input so % and _
// match literally. Backslash is Postgres' default LIKE escape character.
func EscapeLikePattern(input string) string {
	return likeEscaper.Replace(input)
}
