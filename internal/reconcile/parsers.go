package reconcile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const (
	frontMatterDelimiterConstant          = "---"
	markdownValueTrimCharactersConstant   = "`* \t"
	invalidUTF8MessageConstant            = "artifact is not valid UTF-8 text"
	unterminatedFrontMatterMessage        = "front matter is not terminated"
	frontMatterParseErrorTemplateConstant = "invalid front matter: %w"
	jsonParseErrorTemplateConstant        = "invalid JSON: %w"
	unsupportedFormatTemplateConstant     = "unsupported artifact format %q"
	jsonDocumentNotObjectMessageConstant  = "artifact is not a JSON object"
	markdownScannerBufferSizeConstant     = 1024 * 1024
	yamlNullTagConstant                   = "!!null"
)

var (
	errInvalidUTF8             = errors.New(invalidUTF8MessageConstant)
	errUnterminatedFrontMatter = errors.New(unterminatedFrontMatterMessage)
	errJSONDocumentNotObject   = errors.New(jsonDocumentNotObjectMessageConstant)
	utf8ByteOrderMark          = []byte{0xEF, 0xBB, 0xBF}

	// markdownLabelPattern recognizes "Route:", "Table:", and "Type:" labels,
	// optionally preceded by a heading marker or list bullet and optionally
	// wrapped in bold markers on either side of the colon.
	markdownLabelPattern = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s+)?(?:[-*+]\s+)?(?:\*\*|__)?(route|table|type)(?:\*\*|__)?\s*:\s*(?:\*\*|__)?(.*)$`)
)

// ArtifactParserFunc extracts the shared semantic fields from artifact content.
type ArtifactParserFunc func(content []byte) (FieldSet, error)

var artifactParsers = map[ArtifactFormat]ArtifactParserFunc{
	ArtifactFormatMarkdown:    ParseNarrativeReport,
	ArtifactFormatBacklog:     ParseStructuredBacklog,
	ArtifactFormatImpactGraph: ParseImpactGraph,
}

// ParseArtifact dispatches to the parser registered for format.
func ParseArtifact(format ArtifactFormat, content []byte) (FieldSet, error) {
	parser, supported := artifactParsers[format]
	if !supported {
		return nil, fmt.Errorf(unsupportedFormatTemplateConstant, format)
	}
	return parser(bytes.TrimPrefix(content, utf8ByteOrderMark))
}

// ParseNarrativeReport extracts fields from a Markdown audit.
//
// Recognized labels are Route:, Table:, and Type: (case-insensitive), as plain
// lines, list items, headings, or bold labels such as "**Route:** /users".
// The first non-empty occurrence of each label wins. Values in a leading YAML
// front matter block take precedence over body labels.
func ParseNarrativeReport(content []byte) (FieldSet, error) {
	if !utf8.Valid(content) {
		return nil, errInvalidUTF8
	}

	fields := FieldSet{}
	body := content

	frontMatter, remainingBody, hasFrontMatter, frontMatterError := splitFrontMatter(content)
	if frontMatterError != nil {
		return nil, frontMatterError
	}
	if hasFrontMatter {
		var decoded map[string]yaml.Node
		if decodeError := yaml.Unmarshal(frontMatter, &decoded); decodeError != nil {
			return nil, fmt.Errorf(frontMatterParseErrorTemplateConstant, decodeError)
		}
		for _, field := range semanticFieldOrder {
			valueNode, present := decoded[string(field)]
			if !present || valueNode.Kind != yaml.ScalarNode || valueNode.Tag == yamlNullTagConstant {
				continue
			}
			fields.setIfPresent(field, valueNode.Value)
		}
		body = remainingBody
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), markdownScannerBufferSizeConstant)
	for scanner.Scan() {
		matches := markdownLabelPattern.FindStringSubmatch(scanner.Text())
		if len(matches) != 3 {
			continue
		}
		field := SemanticField(strings.ToLower(matches[1]))
		if _, alreadySet := fields[field]; alreadySet {
			continue
		}
		fields.setIfPresent(field, strings.Trim(matches[2], markdownValueTrimCharactersConstant))
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}

	return fields, nil
}

// ParseStructuredBacklog extracts fields from the top-level keys of a backlog JSON object.
func ParseStructuredBacklog(content []byte) (FieldSet, error) {
	return parseSemanticObject(content)
}

// ParseImpactGraph extracts fields from the top-level keys of an impact graph
// JSON object. The graph itself (nodes, edges) is not interpreted.
func ParseImpactGraph(content []byte) (FieldSet, error) {
	return parseSemanticObject(content)
}

// parseSemanticObject looks up the semantic keys of a JSON object. A key whose
// value is not a string is treated as absent.
func parseSemanticObject(content []byte) (FieldSet, error) {
	var document map[string]json.RawMessage
	if decodeError := json.Unmarshal(content, &document); decodeError != nil {
		return nil, fmt.Errorf(jsonParseErrorTemplateConstant, decodeError)
	}
	if document == nil {
		return nil, errJSONDocumentNotObject
	}

	fields := FieldSet{}
	for _, field := range semanticFieldOrder {
		rawValue, present := document[string(field)]
		if !present {
			continue
		}
		var value string
		if json.Unmarshal(rawValue, &value) != nil {
			continue
		}
		fields.setIfPresent(field, value)
	}
	return fields, nil
}

func (fields FieldSet) setIfPresent(field SemanticField, value string) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return
	}
	fields[field] = trimmedValue
}

// splitFrontMatter separates a leading "---" delimited YAML block from the body.
func splitFrontMatter(content []byte) ([]byte, []byte, bool, error) {
	firstLineEnd := bytes.IndexByte(content, '\n')
	if firstLineEnd < 0 {
		return nil, content, false, nil
	}
	if strings.TrimSpace(string(content[:firstLineEnd])) != frontMatterDelimiterConstant {
		return nil, content, false, nil
	}

	offset := firstLineEnd + 1
	for offset <= len(content) {
		lineEnd := bytes.IndexByte(content[offset:], '\n')
		var line []byte
		nextOffset := len(content) + 1
		if lineEnd < 0 {
			line = content[offset:]
		} else {
			line = content[offset : offset+lineEnd]
			nextOffset = offset + lineEnd + 1
		}
		if strings.TrimSpace(string(line)) == frontMatterDelimiterConstant {
			remainingBody := []byte{}
			if nextOffset <= len(content) {
				remainingBody = content[nextOffset:]
			}
			return content[firstLineEnd+1 : offset], remainingBody, true, nil
		}
		offset = nextOffset
	}

	return nil, nil, false, errUnterminatedFrontMatter
}
