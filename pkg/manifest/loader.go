package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/abicall/abicall/pkg/abi"
)

type (
	// jsonEntry is an element of Solidity JSON ABI.
	jsonEntry struct {
		Type            string      `json:"type"`
		Name            string      `json:"name"`
		Inputs          []jsonParam `json:"inputs"`
		Outputs         []jsonParam `json:"outputs"`
		StateMutability string      `json:"stateMutability"`
		Constant        bool        `json:"constant"`
		Payable         bool        `json:"payable"`
	}

	jsonParam struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
)

// FromJSON creates a registry from Solidity JSON ABI. Only functions are
// taken into account, events, errors, constructors, fallback and receive
// entries are skipped.
func FromJSON(data []byte) (*ABI, error) {
	var entries []jsonEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid JSON ABI: %w", err)
	}
	a := new(ABI)
	for i, e := range entries {
		if e.Type != "" && e.Type != "function" {
			continue
		}
		m, err := e.toMethod()
		if err != nil {
			return nil, fmt.Errorf("entry #%d (%s): %w", i, e.Name, err)
		}
		if err := a.Register(m); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (e *jsonEntry) toMethod() (Method, error) {
	var (
		m   = Method{Name: e.Name}
		err error
	)
	switch {
	case e.StateMutability != "":
		m.Mutability, err = ParseMutability(e.StateMutability)
		if err != nil {
			return m, err
		}
	case e.Constant:
		m.Mutability = View
	case e.Payable:
		m.Mutability = Payable
	}
	m.Parameters, err = convertParams(e.Inputs)
	if err != nil {
		return m, fmt.Errorf("inputs: %w", err)
	}
	m.Returns, err = convertParams(e.Outputs)
	if err != nil {
		return m, fmt.Errorf("outputs: %w", err)
	}
	return m, nil
}

func convertParams(ps []jsonParam) (Parameters, error) {
	res := make(Parameters, len(ps))
	for i := range ps {
		typ, err := abi.ParseType(ps[i].Type)
		if err != nil {
			return nil, fmt.Errorf("parameter #%d/%q: %w", i, ps[i].Name, err)
		}
		res[i] = NewParameter(ps[i].Name, typ)
	}
	return res, nil
}

// FromHumanReadable creates a registry from human-readable declarations like
// "function sum(uint256[] memory values) external pure returns (string memory, uint256)".
// Empty lines, comments, event and error declarations are skipped.
func FromHumanReadable(decls []string) (*ABI, error) {
	a := new(ABI)
	for i, d := range decls {
		d = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(d), ";"))
		if d == "" || strings.HasPrefix(d, "//") || strings.HasPrefix(d, "event ") || strings.HasPrefix(d, "error ") {
			continue
		}
		m, err := ParseMethod(d)
		if err != nil {
			return nil, fmt.Errorf("declaration #%d: %w", i, err)
		}
		if err := a.Register(m); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// ParseMethod parses a single human-readable function declaration.
func ParseMethod(decl string) (Method, error) {
	var m Method

	s, ok := strings.CutPrefix(strings.TrimSpace(decl), "function ")
	if !ok {
		return m, fmt.Errorf("not a function declaration: %q", decl)
	}
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return m, fmt.Errorf("no parameter list in %q", decl)
	}
	m.Name = strings.TrimSpace(s[:open])
	params, rest, err := cutParens(s[open:])
	if err != nil {
		return m, fmt.Errorf("%q: %w", decl, err)
	}
	m.Parameters, err = parseParams(params)
	if err != nil {
		return m, fmt.Errorf("%s: %w", m.Name, err)
	}
	words := strings.Fields(strings.Replace(rest, "returns(", "returns (", 1))
	for i := 0; i < len(words); i++ {
		switch w := words[i]; w {
		case "external", "public", "virtual", "override":
		case "returns":
			tail := strings.TrimSpace(strings.Join(words[i+1:], " "))
			rets, after, err := cutParens(tail)
			if err != nil {
				return m, fmt.Errorf("%s returns: %w", m.Name, err)
			}
			if strings.TrimSpace(after) != "" {
				return m, fmt.Errorf("%s: unexpected %q after returns", m.Name, after)
			}
			m.Returns, err = parseParams(rets)
			if err != nil {
				return m, fmt.Errorf("%s returns: %w", m.Name, err)
			}
			i = len(words)
		default:
			mut, err := ParseMutability(w)
			if err != nil {
				return m, fmt.Errorf("%s: unexpected %q", m.Name, w)
			}
			m.Mutability = mut
		}
	}
	return m, m.IsValid()
}

// cutParens returns the contents of the parenthesized list s starts with and
// the remainder after it.
func cutParens(s string) (string, string, error) {
	if !strings.HasPrefix(s, "(") {
		return "", "", errors.New("'(' expected")
	}
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return "", "", errors.New("unterminated parameter list")
	}
	inner := s[1:end]
	if strings.ContainsAny(inner, "(") {
		return "", "", fmt.Errorf("%w: tuple", abi.ErrUnsupportedType)
	}
	return inner, s[end+1:], nil
}

func parseParams(s string) (Parameters, error) {
	if strings.TrimSpace(s) == "" {
		return Parameters{}, nil
	}
	parts := strings.Split(s, ",")
	res := make(Parameters, len(parts))
	for i, p := range parts {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			return nil, fmt.Errorf("parameter #%d is empty", i)
		}
		typ, err := abi.ParseType(fields[0])
		if err != nil {
			return nil, fmt.Errorf("parameter #%d: %w", i, err)
		}
		var name string
		for _, f := range fields[1:] {
			switch f {
			case "memory", "calldata", "storage", "indexed":
			default:
				if name != "" {
					return nil, fmt.Errorf("parameter #%d: unexpected %q", i, f)
				}
				name = f
			}
		}
		res[i] = NewParameter(name, typ)
	}
	return res, nil
}

// ExtractDeclarations picks function declarations from a Solidity-like
// interface text: statements are split on newlines and semicolons, anything
// that doesn't start with "function" is ignored. A pair of square brackets
// around the whole text is stripped.
func ExtractDeclarations(text string) []string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		text = text[1 : len(text)-1]
	}
	var res []string
	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if strings.HasPrefix(stmt, "function ") {
				res = append(res, stmt)
			}
		}
	}
	return res
}

// Parse creates a registry from either Solidity JSON ABI or human-readable
// interface text, picking the format by content.
func Parse(data []byte) (*ABI, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) != 0 && trimmed[0] == '[' && json.Valid(trimmed) {
		return FromJSON(trimmed)
	}
	decls := ExtractDeclarations(string(trimmed))
	if len(decls) == 0 {
		return nil, errors.New("no function declarations found")
	}
	return FromHumanReadable(decls)
}

// Load reads the registry from the file, see Parse.
func Load(path string) (*ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}
