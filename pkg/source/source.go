package source

import (
	"fmt"
	"strings"
)

// Type is the kind of SaaS platform an integration talks to.
type Type string

const (
	TypeAWS             Type = "aws"
	TypeSlack           Type = "slack"
	TypeZoom            Type = "zoom"
	TypeGithub          Type = "github"
	TypeGoogleWorkspace Type = "google-workspace"
	TypeDatadog         Type = "datadog"

	Nil Type = ""
)

var AllTypes = []Type{
	TypeAWS,
	TypeSlack,
	TypeZoom,
	TypeGithub,
	TypeGoogleWorkspace,
	TypeDatadog,
}

func (t Type) String() string {
	return string(t)
}

func ParseType(str string) (Type, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	for _, t := range AllTypes {
		if str == t.String() {
			return t, nil
		}
	}
	return Nil, fmt.Errorf("invalid app type: %s", str)
}

func ParseTypes(str []string) []Type {
	result := make([]Type, 0, len(str))
	for _, s := range str {
		t, err := ParseType(s)
		if err != nil {
			continue
		}
		result = append(result, t)
	}
	return result
}
