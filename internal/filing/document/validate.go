package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Problem is one structural defect found by the validation battery.
type Problem struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

func (p Problem) String() string { return p.Check + ": " + p.Detail }

// Check runs the full structural battery over serialized document bytes:
// well-formed XML, required root attributes, count attributes matching the
// elements actually present, SeqNum uniqueness and contiguity, required party
// type codes, and date fields in a sane range. It returns every problem found
// so dry runs print a complete report.
//
// This is structural validation only; full XSD validation against the
// regulator's published schema is intentionally out of scope here.
func Check(data []byte, now time.Time) []Problem {
	var problems []Problem
	add := func(check, format string, args ...any) {
		problems = append(problems, Problem{Check: check, Detail: fmt.Sprintf(format, args...)})
	}

	scan, err := scanDocument(data)
	if err != nil {
		add("well-formed", "%v", err)
		return problems
	}

	if scan.root != "EFilingBatchXML" {
		add("root", "unexpected root element %q", scan.root)
		return problems
	}

	// Required root attributes.
	for _, attr := range []string{
		"FormTypeCode", "ActivityCount", "PartyCount", "AccountCount",
		"TransfereeCount", "TransferorCount", "TotalAmount",
	} {
		if _, ok := scan.rootAttrs[attr]; !ok {
			add("root-attrs", "missing root attribute %s", attr)
		}
	}
	if code := scan.rootAttrs["FormTypeCode"]; code != "" && code != FormTypeCode {
		add("root-attrs", "unexpected FormTypeCode %q", code)
	}

	// Count attributes must equal the number of matching elements present.
	checkCount := func(attr string, actual int) {
		raw, ok := scan.rootAttrs[attr]
		if !ok {
			return
		}
		declared, err := strconv.Atoi(raw)
		if err != nil {
			add("counts", "%s is not an integer: %q", attr, raw)
			return
		}
		if declared != actual {
			add("counts", "%s declares %d but document contains %d", attr, declared, actual)
		}
	}
	checkCount("ActivityCount", scan.elements["Activity"])
	checkCount("PartyCount", scan.elements["Party"])
	checkCount("AccountCount", scan.elements["Account"])
	checkCount("TransfereeCount", scan.transferees)
	checkCount("TransferorCount", scan.transferors)

	// SeqNums must be unique and form a contiguous ascending run from 1.
	for i, n := range scan.seqNums {
		if n != i+1 {
			add("seqnum", "expected SeqNum %d at position %d, got %d", i+1, i, n)
			break
		}
	}

	// Required party roles, by type code.
	for _, code := range []string{CodeReportingPerson, CodeTransmitter, CodeTransmitterContact} {
		if scan.partyCodes[code] != 1 {
			add("party-roles", "expected exactly one party with type code %s, found %d", code, scan.partyCodes[code])
		}
	}
	if scan.transferees == 0 {
		add("party-roles", "no transferee party present")
	}
	if scan.transferors == 0 {
		add("party-roles", "no transferor party present")
	}

	// Date fields must parse and fall in a plausible range.
	earliest := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	latest := now.AddDate(1, 0, 0)
	for _, d := range scan.dates {
		t, err := time.Parse("20060102", d.value)
		if err != nil {
			add("dates", "%s contains invalid date %q", d.element, d.value)
			continue
		}
		if t.Before(earliest) || t.After(latest) {
			add("dates", "%s date %s is out of range", d.element, d.value)
		}
	}

	return problems
}

type dateField struct {
	element string
	value   string
}

type docScan struct {
	root        string
	rootAttrs   map[string]string
	elements    map[string]int
	partyCodes  map[string]int
	seqNums     []int
	dates       []dateField
	transferees int
	transferors int
}

// scanDocument walks the token stream once, collecting everything the battery
// needs. Token-level scanning keeps the validator independent of the schema
// structs, so it also catches mistakes in their XML tags.
func scanDocument(data []byte) (*docScan, error) {
	scan := &docScan{
		rootAttrs:  map[string]string{},
		elements:   map[string]int{},
		partyCodes: map[string]int{},
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []string
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if scan.root == "" {
				scan.root = name
				for _, a := range t.Attr {
					scan.rootAttrs[a.Name.Local] = a.Value
				}
			}
			scan.elements[name]++
			for _, a := range t.Attr {
				if a.Name.Local == "SeqNum" {
					n, err := strconv.Atoi(a.Value)
					if err != nil {
						return nil, fmt.Errorf("element %s has non-numeric SeqNum %q", name, a.Value)
					}
					scan.seqNums = append(scan.seqNums, n)
				}
			}
			stack = append(stack, name)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			name := t.Name.Local
			value := strings.TrimSpace(text.String())
			text.Reset()
			if name == "ActivityPartyTypeCode" && parentIs(stack, "Party") {
				scan.partyCodes[value]++
				switch value {
				case CodeTransfereeIndividual, CodeTransfereeEntity:
					scan.transferees++
				case CodeTransferorIndividual, CodeTransferorEntity, CodeTransferorTrust:
					scan.transferors++
				}
			}
			if strings.HasSuffix(name, "DateText") && value != "" {
				scan.dates = append(scan.dates, dateField{element: name, value: value})
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if scan.root == "" {
		return nil, fmt.Errorf("document contains no elements")
	}
	return scan, nil
}

// parentIs reports whether the element enclosing the current one (top of
// stack) is the given name. Used to read type codes of Party elements without
// also counting codes inside AssociatedParty children.
func parentIs(stack []string, name string) bool {
	if len(stack) < 2 {
		return false
	}
	return stack[len(stack)-2] == name
}
