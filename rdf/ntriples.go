package rdf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseNTriples reads an N-Triples document into a new graph. Comments and
// blank lines are skipped; a malformed line fails the whole document.
func ParseNTriples(r io.Reader) (*Graph, error) {
	g := NewGraph()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parseTripleLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		g.Add(t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// WriteNTriples writes every triple of g, one per line.
func WriteNTriples(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	for _, t := range g.Triples() {
		if _, err := fmt.Fprintf(bw, "%s <%s> %s .\n", t.Subject, t.Predicate, t.Object); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func parseTripleLine(line string) (Triple, error) {
	rest := line
	s, rest, err := readTerm(rest)
	if err != nil {
		return Triple{}, fmt.Errorf("subject: %w", err)
	}
	if !s.IsNode() {
		return Triple{}, fmt.Errorf("subject must be an IRI or blank node")
	}
	p, rest, err := readTerm(rest)
	if err != nil {
		return Triple{}, fmt.Errorf("predicate: %w", err)
	}
	if !p.IsIRI() {
		return Triple{}, fmt.Errorf("predicate must be an IRI")
	}
	o, rest, err := readTerm(rest)
	if err != nil {
		return Triple{}, fmt.Errorf("object: %w", err)
	}
	if strings.TrimSpace(rest) != "." {
		return Triple{}, fmt.Errorf("missing terminating '.'")
	}
	return Triple{Subject: s, Predicate: p.Value, Object: o}, nil
}

func readTerm(in string) (Term, string, error) {
	in = strings.TrimLeft(in, " \t")
	switch {
	case strings.HasPrefix(in, "<"):
		end := strings.IndexByte(in, '>')
		if end < 0 {
			return Term{}, "", fmt.Errorf("unterminated IRI")
		}
		return NewIRI(in[1:end]), in[end+1:], nil

	case strings.HasPrefix(in, "_:"):
		end := strings.IndexAny(in, " \t")
		if end < 0 {
			end = len(in)
		}
		return NewBlank(in[:end]), in[end:], nil

	case strings.HasPrefix(in, `"`):
		end := closingQuote(in)
		if end < 0 {
			return Term{}, "", fmt.Errorf("unterminated literal")
		}
		value, err := strconv.Unquote(in[:end+1])
		if err != nil {
			return Term{}, "", fmt.Errorf("literal: %w", err)
		}
		rest := in[end+1:]
		switch {
		case strings.HasPrefix(rest, "^^<"):
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				return Term{}, "", fmt.Errorf("unterminated datatype")
			}
			return NewLiteral(value, rest[3:gt]), rest[gt+1:], nil
		case strings.HasPrefix(rest, "@"):
			end := strings.IndexAny(rest, " \t")
			if end < 0 {
				end = len(rest)
			}
			return NewLangLiteral(value, rest[1:end]), rest[end:], nil
		default:
			return NewLiteral(value, ""), rest, nil
		}
	}
	return Term{}, "", fmt.Errorf("unexpected input %q", truncate(in, 20))
}

// closingQuote returns the index of the quote ending the literal at in[0].
func closingQuote(in string) int {
	for i := 1; i < len(in); i++ {
		switch in[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
