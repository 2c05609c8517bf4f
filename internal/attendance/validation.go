package attendance

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	msgLeaderRequired  = "informe o nome do líder"
	msgBadgeRequired   = "informe a matrícula"
	msgBadgeDigits     = "a matrícula deve conter apenas números"
	msgSectorRequired  = "selecione um setor"
	msgOtherRequired   = "especifique o setor em \"" + SectorOther + "\""
	msgTierRequired    = "selecione o atingimento"
	msgSectorNameEmpty = "o nome do setor não pode ficar vazio"
	msgSectorReserved  = "\"" + SectorOther + "\" não é um nome de setor válido"
)

var validate = validator.New()

// Policy holds the configurable submission rules.
type Policy struct {
	BadgeMinLength int
	BadgeMaxLength int
	Tiers          []string
}

// DefaultPolicy returns the canonical rules: badges of 4 to 10 digits and the default tiers.
func DefaultPolicy() Policy {
	return Policy{
		BadgeMinLength: 4,
		BadgeMaxLength: 10,
		Tiers:          append([]string(nil), DefaultTiers...),
	}
}

// SubmitInput is the raw form content for one submission.
type SubmitInput struct {
	LeaderName  string `json:"leader_name"`
	BadgeID     string `json:"badge_id"`
	Sector      string `json:"sector"`
	OtherSector string `json:"other_sector"`
	Tier        string `json:"tier"`
}

func (in SubmitInput) normalized() SubmitInput {
	return SubmitInput{
		LeaderName:  strings.TrimSpace(in.LeaderName),
		BadgeID:     strings.TrimSpace(in.BadgeID),
		Sector:      strings.TrimSpace(in.Sector),
		OtherSector: strings.TrimSpace(in.OtherSector),
		Tier:        strings.TrimSpace(in.Tier),
	}
}

// ResolvedSector is the free-text name when "Outros" was chosen, the selected value otherwise.
func (in SubmitInput) ResolvedSector() string {
	if in.Sector == SectorOther {
		return strings.TrimSpace(in.OtherSector)
	}
	return strings.TrimSpace(in.Sector)
}

// Validate runs every rule and reports all violations at once.
func (p Policy) Validate(in SubmitInput) error {
	in = in.normalized()
	var problems []string

	if in.LeaderName == "" {
		problems = append(problems, msgLeaderRequired)
	}
	problems = append(problems, p.badgeProblems(in.BadgeID)...)

	switch {
	case in.Sector == "":
		problems = append(problems, msgSectorRequired)
	case in.Sector == SectorOther && in.OtherSector == "":
		problems = append(problems, msgOtherRequired)
	case in.Sector == SectorOther && in.OtherSector == SectorOther:
		problems = append(problems, msgSectorReserved)
	}

	switch {
	case in.Tier == "":
		problems = append(problems, msgTierRequired)
	case len(p.Tiers) > 0 && !containsExact(p.Tiers, in.Tier):
		problems = append(problems, fmt.Sprintf("atingimento inválido; opções: %s", strings.Join(p.Tiers, ", ")))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (p Policy) badgeProblems(badge string) []string {
	if badge == "" {
		return []string{msgBadgeRequired}
	}
	var problems []string
	if err := validate.Var(badge, "number"); err != nil {
		problems = append(problems, msgBadgeDigits)
	}
	if p.BadgeMinLength > 0 && len(badge) < p.BadgeMinLength {
		problems = append(problems, fmt.Sprintf("a matrícula deve ter pelo menos %d dígitos", p.BadgeMinLength))
	}
	if p.BadgeMaxLength > 0 && len(badge) > p.BadgeMaxLength {
		problems = append(problems, fmt.Sprintf("a matrícula deve ter no máximo %d dígitos", p.BadgeMaxLength))
	}
	return problems
}
