// Package sqlguard performs a schema-bound allow-list check over generated
// SQL. It is deliberately not a SQL parser: it strips literals, records
// FROM/JOIN aliases and verifies that every column reference resolves to a
// known table.column pair, rejecting anything it cannot account for.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Schema is the canonical allow-list: table name to its allowed columns.
type Schema map[string][]string

// Result reports the outcome of a validation pass.
type Result struct {
	Valid   bool
	Invalid []string
}

var (
	forbiddenKeywords = []string{
		"insert", "update", "delete", "drop", "alter", "create", "truncate",
	}

	// Non-identifier words that may legitimately appear bare in a SELECT.
	sqlKeywords = map[string]struct{}{
		"select": {}, "from": {}, "where": {}, "join": {}, "inner": {},
		"left": {}, "right": {}, "full": {}, "outer": {}, "cross": {},
		"on": {}, "as": {}, "and": {}, "or": {}, "not": {}, "null": {},
		"is": {}, "in": {}, "like": {}, "ilike": {}, "between": {},
		"group": {}, "by": {}, "order": {}, "limit": {}, "offset": {},
		"having": {}, "distinct": {}, "asc": {}, "desc": {}, "union": {},
		"all": {}, "any": {}, "exists": {}, "case": {}, "when": {},
		"then": {}, "else": {}, "end": {}, "cast": {}, "true": {},
		"false": {}, "interval": {}, "current_date": {}, "current_timestamp": {},
		"now": {}, "count": {}, "sum": {}, "avg": {}, "min": {}, "max": {},
		"coalesce": {}, "nullif": {}, "lower": {}, "upper": {}, "extract": {},
		"date": {}, "date_trunc": {}, "to_char": {}, "round": {}, "abs": {},
		"epoch": {}, "day": {}, "month": {}, "year": {}, "using": {},
	}

	singleQuoted  = regexp.MustCompile(`'(?:[^']|'')*'`)
	dollarQuoted  = regexp.MustCompile(`(?s)\$([A-Za-z_]*)\$.*?\$([A-Za-z_]*)\$`)
	fromJoinToken = regexp.MustCompile(`(?i)\b(?:from|join)\s+(?:([A-Za-z_]\w*)\.)?([A-Za-z_]\w*)(?:\s+(?:as\s+)?([A-Za-z_]\w*))?`)
	qualifiedRef  = regexp.MustCompile(`\b([A-Za-z_]\w*)\.([A-Za-z_]\w*)\b`)
	wordToken     = regexp.MustCompile(`[A-Za-z_]\w*(?:\.[A-Za-z_]\w*)*`)
	numericToken  = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// Validate checks a generated SQL string against the allow-list. The query
// must be a single SELECT and every identifier must resolve to the schema;
// everything else is collected into Result.Invalid.
func Validate(query string, schema Schema) Result {
	stripped := stripLiterals(query)
	trimmed := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(stripped), ";"))

	var invalid []string

	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		invalid = append(invalid, "statement must be a single SELECT")
	}
	if strings.Contains(trimmed, ";") {
		invalid = append(invalid, "multiple statements are not allowed")
	}
	lowered := strings.ToLower(trimmed)
	for _, keyword := range forbiddenKeywords {
		if containsBareWord(lowered, keyword) {
			invalid = append(invalid, fmt.Sprintf("forbidden keyword %q", strings.ToUpper(keyword)))
		}
	}
	if len(invalid) > 0 {
		return Result{Valid: false, Invalid: invalid}
	}

	columns := columnSets(schema)
	aliases := collectAliases(trimmed)

	// Every table named in FROM/JOIN must itself be on the allow-list. The
	// alias entry stays either way so column misses are still reported by name.
	checkedTables := map[string]struct{}{}
	for _, table := range aliases {
		if _, ok := checkedTables[table]; ok {
			continue
		}
		checkedTables[table] = struct{}{}
		if _, ok := columns[table]; !ok {
			invalid = append(invalid, fmt.Sprintf("unknown table %q", table))
		}
	}

	// Qualified references must resolve through the alias map.
	seenQualified := map[string]struct{}{}
	for _, match := range qualifiedRef.FindAllStringSubmatch(trimmed, -1) {
		ref := match[0]
		seenQualified[strings.ToLower(ref)] = struct{}{}
		table, ok := aliases[strings.ToLower(match[1])]
		if !ok {
			invalid = append(invalid, fmt.Sprintf("unknown table or alias %q", match[1]))
			continue
		}
		if _, ok := columns[table][strings.ToLower(match[2])]; !ok {
			invalid = append(invalid, fmt.Sprintf("unknown column %q", ref))
		}
	}

	// Bare identifiers must match a column somewhere in the allow-list.
	for _, token := range wordToken.FindAllString(trimmed, -1) {
		lower := strings.ToLower(token)
		if strings.Contains(lower, ".") {
			continue
		}
		if _, ok := seenQualifiedPart(seenQualified, lower); ok {
			continue
		}
		if _, ok := sqlKeywords[lower]; ok {
			continue
		}
		if numericToken.MatchString(lower) {
			continue
		}
		if _, ok := aliases[lower]; ok {
			continue
		}
		if _, ok := schema[lower]; ok {
			continue
		}
		if !columnExists(columns, lower) {
			invalid = append(invalid, fmt.Sprintf("unknown identifier %q", token))
		}
	}

	return Result{Valid: len(invalid) == 0, Invalid: dedupe(invalid)}
}

// stripLiterals removes quoted strings and dollar-quoted blocks so identifier
// scanning never matches text inside string content.
func stripLiterals(query string) string {
	query = dollarQuoted.ReplaceAllString(query, " ")
	return singleQuoted.ReplaceAllString(query, " ")
}

func containsBareWord(lowered, word string) bool {
	re := regexp.MustCompile(`\b` + word + `\b`)
	return re.MatchString(lowered)
}

// collectAliases maps every FROM/JOIN token and its alias to the underlying
// table name. Unknown tables still get an alias entry so the column check
// reports the column, not a cascade of alias misses.
func collectAliases(query string) map[string]string {
	aliases := map[string]string{}
	for _, match := range fromJoinToken.FindAllStringSubmatch(query, -1) {
		table := strings.ToLower(match[2])
		aliases[table] = table
		if alias := strings.ToLower(match[3]); alias != "" {
			if _, isKeyword := sqlKeywords[alias]; !isKeyword {
				aliases[alias] = table
			}
		}
	}
	return aliases
}

func columnSets(schema Schema) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(schema))
	for table, cols := range schema {
		set := make(map[string]struct{}, len(cols))
		for _, col := range cols {
			set[strings.ToLower(col)] = struct{}{}
		}
		out[strings.ToLower(table)] = set
	}
	return out
}

func columnExists(columns map[string]map[string]struct{}, name string) bool {
	for _, set := range columns {
		if _, ok := set[name]; ok {
			return true
		}
	}
	return false
}

// seenQualifiedPart reports whether the token appeared as part of an already
// checked alias.column reference.
func seenQualifiedPart(seen map[string]struct{}, token string) (string, bool) {
	for ref := range seen {
		parts := strings.SplitN(ref, ".", 2)
		if len(parts) == 2 && (parts[0] == token || parts[1] == token) {
			return ref, true
		}
	}
	return "", false
}

func dedupe(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
