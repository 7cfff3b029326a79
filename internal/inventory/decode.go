package inventory

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// decodeImport parses an import payload. Only the top-level shape is
// validated: a non-array yields an empty inventory, non-object elements are
// skipped and wrong-typed fields are left at their zero value.
func decodeImport(data []byte) ([]resource.Resource, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	elements, ok := parsed.([]any)
	if !ok {
		return []resource.Resource{}, nil
	}

	resources := make([]resource.Resource, 0, len(elements))
	for i, el := range elements {
		obj, ok := el.(map[string]any)
		if !ok {
			if el != nil {
				log.Warn().Int("index", i).Msg("skipping non-object import element")
			}
			continue
		}
		resources = append(resources, resourceFromObject(obj))
	}
	return resources, nil
}

func resourceFromObject(obj map[string]any) resource.Resource {
	r := resource.Resource{
		ID:           stringField(obj, "id"),
		Name:         stringField(obj, "name"),
		Provider:     resource.Provider(stringField(obj, "provider")),
		AccountID:    stringField(obj, "accountId"),
		Type:         resource.Type(stringField(obj, "type")),
		Region:       stringField(obj, "region"),
		Status:       resource.Status(stringField(obj, "status")),
		CreatedAt:    stringField(obj, "createdAt"),
		RiskLevel:    resource.RiskLevel(stringField(obj, "riskLevel")),
		CostPerMonth: numberField(obj, "costPerMonth"),
		Tags:         tagsField(obj, "tags"),
	}
	if m, ok := obj["metadata"].(map[string]any); ok {
		r.Metadata = m
	}
	if issues, ok := obj["securityIssues"].([]any); ok {
		for _, issue := range issues {
			if s, ok := issue.(string); ok {
				r.SecurityIssues = append(r.SecurityIssues, s)
			}
		}
	}
	return r
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func numberField(obj map[string]any, key string) float64 {
	n, _ := obj[key].(float64)
	return n
}

// tagsField keeps string values and renders number and boolean values as
// text. Any other value drops the tag.
func tagsField(obj map[string]any, key string) map[string]string {
	raw, ok := obj[key].(map[string]any)
	if !ok {
		return nil
	}
	tags := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			tags[k] = val
		case float64:
			tags[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			tags[k] = strconv.FormatBool(val)
		}
	}
	return tags
}
