// Package compat is the Compatibility Validator (C7): a cheap,
// metadata-free check that every pack in the list targets the same
// Minecraft version and loader as the head pack (index 0) — the two
// fields that decide whether an install can run at all.
//
// Purely advisory in the data it returns — it is the orchestrator (C10)
// that decides a non-empty issue list disables deep analysis and export.
package compat

import (
	"fmt"

	"github.com/mmerge/modmerge/internal/model"
)

// Validate compares every pack in others against head and returns one
// CompatibilityIssue per mismatched field per deviating pack. head is
// never checked against itself. A nil/empty others yields no issues.
func Validate(head *model.Pack, others []*model.Pack) []model.CompatibilityIssue {
	var issues []model.CompatibilityIssue
	if head == nil {
		return issues
	}

	for _, p := range others {
		if p == nil || p.ID == head.ID {
			continue
		}

		if p.MinecraftVersion != head.MinecraftVersion {
			issues = append(issues, model.CompatibilityIssue{
				Kind:     model.IssueVersionMismatch,
				Severity: model.SeverityDanger,
				Message: fmt.Sprintf("%s targets Minecraft %s, head pack %s targets %s",
					p.Name, p.MinecraftVersion, head.Name, head.MinecraftVersion),
				PackA: head.Name,
				PackB: p.Name,
			})
		}

		if p.Loader != head.Loader {
			issues = append(issues, model.CompatibilityIssue{
				Kind:     model.IssueLoaderMismatch,
				Severity: model.SeverityDanger,
				Message: fmt.Sprintf("%s uses loader %s, head pack %s uses %s",
					p.Name, p.Loader, head.Name, head.Loader),
				PackA: head.Name,
				PackB: p.Name,
			})
		}
	}

	return issues
}
