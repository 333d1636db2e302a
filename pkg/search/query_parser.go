package search

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ParsedQuery is a search query split into free text and filters
type ParsedQuery struct {
	// Text is the query with filters removed, used for lexical matching
	Text string

	// Tokens are the unique lower-case letter and digit runs of Text
	Tokens []string

	// Domain filters: activity, knowledge, workflow
	Domains []Domain

	// Scope filter, empty for both
	Scope Scope

	// WorkspaceID restricts workspace results to one workspace
	WorkspaceID string

	// Raw is the original query string
	Raw string
}

// QueryParser parses the search query syntax
type QueryParser struct {
	filterPattern *regexp.Regexp
}

// NewQueryParser creates a new query parser
func NewQueryParser() *QueryParser {
	// key:value or key:"quoted value"
	return &QueryParser{
		filterPattern: regexp.MustCompile(`\b(type|scope|workspace):("([^"]+)"|(\S+))`),
	}
}

// Parse parses a search query string
func (p *QueryParser) Parse(queryStr string) (*ParsedQuery, error) {
	query := &ParsedQuery{Raw: queryStr}

	for _, match := range p.filterPattern.FindAllStringSubmatch(queryStr, -1) {
		value := match[3]
		if value == "" {
			value = match[4]
		}
		if err := p.parseFilter(query, match[1], value); err != nil {
			return nil, err
		}
	}

	text := p.filterPattern.ReplaceAllString(queryStr, "")
	query.Text = strings.Join(strings.Fields(text), " ")
	query.Tokens = Tokenize(query.Text)
	return query, nil
}

func (p *QueryParser) parseFilter(query *ParsedQuery, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "type":
		domain := Domain(strings.ToLower(value))
		switch domain {
		case DomainActivity, DomainKnowledge, DomainWorkflow:
			query.Domains = append(query.Domains, domain)
		default:
			return fmt.Errorf("invalid type filter: %s (must be one of: activity, knowledge, workflow)", value)
		}

	case "scope":
		scope := Scope(strings.ToLower(value))
		if scope != ScopePersonal && scope != ScopeWorkspace {
			return fmt.Errorf("invalid scope filter: %s (must be personal or workspace)", value)
		}
		query.Scope = scope

	case "workspace":
		query.WorkspaceID = value
	}
	return nil
}

// HasDomain reports whether results of domain are wanted
func (q *ParsedQuery) HasDomain(domain Domain) bool {
	if len(q.Domains) == 0 {
		return true
	}
	for _, d := range q.Domains {
		if d == domain {
			return true
		}
	}
	return false
}

// HasFilters returns true if the query has any filters
func (q *ParsedQuery) HasFilters() bool {
	return len(q.Domains) > 0 || q.Scope != "" || q.WorkspaceID != ""
}

// Tokenize returns the unique lower-case runs of letters and digits in s,
// in order of first appearance
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Examples:
//
//	"launch plan"                  -> tokens [launch plan]
//	"launch type:knowledge"        -> knowledge sources only
//	"launch scope:personal"        -> the actor's own data only
//	"launch workspace:<id>"        -> one workspace (plus personal unless scope:workspace)
//	"notes 10:30"                  -> unknown keys stay in the text
