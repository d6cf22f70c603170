package ballot

import (
	"fmt"
	"sort"
	"strings"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
)

// Button ids carried on ballot messages. The interaction event hands them
// back verbatim.
const (
	ButtonYes = "ballot:yes"
	ButtonNo  = "ballot:no"
)

func title(b *Ballot) string {
	switch b.Kind {
	case domain.BallotKindAdmission:
		return fmt.Sprintf("Admission vote: %s", b.SubjectName)
	case domain.BallotKindManualSanction:
		return fmt.Sprintf("Sanction vote: %s", b.SubjectName)
	default:
		return fmt.Sprintf("Expulsion vote: %s", b.SubjectName)
	}
}

// render builds the ballot message for its current state. Resolved ballots
// get disabled controls and an outcome line.
func render(b *Ballot) gateway.OutboundMessage {
	t := b.tally()

	embed := &gateway.Embed{
		Title:       title(b),
		Description: description(b),
	}

	switch b.Policy.Visibility {
	case domain.VisibilityPublic:
		embed.Fields = append(embed.Fields,
			gateway.EmbedField{Name: fmt.Sprintf("Yes (%d)", t.Yes), Value: voterList(b, domain.ChoiceYes), Inline: true},
			gateway.EmbedField{Name: fmt.Sprintf("No (%d)", t.No), Value: voterList(b, domain.ChoiceNo), Inline: true},
		)
	default:
		embed.Fields = append(embed.Fields,
			gateway.EmbedField{Name: "Yes", Value: fmt.Sprintf("%d", t.Yes), Inline: true},
			gateway.EmbedField{Name: "No", Value: fmt.Sprintf("%d", t.No), Inline: true},
		)
	}
	embed.Fields = append(embed.Fields, gateway.EmbedField{
		Name:   "Voted",
		Value:  fmt.Sprintf("%d of %d", t.Cast, t.Eligible),
		Inline: true,
	})

	if b.Resolved {
		embed.Footer = outcomeLine(b)
	} else {
		embed.Footer = "Closes " + b.Deadline.UTC().Format("2006-01-02 15:04 UTC")
	}

	return gateway.OutboundMessage{
		Embed: embed,
		Buttons: []gateway.Button{
			{ID: ButtonYes, Label: "Yes", Disabled: b.Resolved},
			{ID: ButtonNo, Label: "No", Disabled: b.Resolved},
		},
	}
}

func description(b *Ballot) string {
	var sb strings.Builder
	switch b.Kind {
	case domain.BallotKindAdmission:
		fmt.Fprintf(&sb, "Admit %s to the community?", b.Subject.Mention())
	case domain.BallotKindManualSanction:
		fmt.Fprintf(&sb, "Sanction %s?", b.Subject.Mention())
	default:
		fmt.Fprintf(&sb, "Expel %s from the community?", b.Subject.Mention())
	}
	if b.Reason != "" {
		fmt.Fprintf(&sb, "\nReason: %s", b.Reason)
	}
	return sb.String()
}

func voterList(b *Ballot, choice domain.Choice) string {
	names := make([]string, 0)
	for _, v := range b.Votes {
		if v.Choice == choice {
			names = append(names, v.VoterName)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	sort.Strings(names)
	return strings.Join(names, "\n")
}

func outcomeLine(b *Ballot) string {
	switch b.Outcome {
	case domain.OutcomeApproved:
		return "Approved"
	case domain.OutcomeRejected:
		return "Rejected"
	default:
		return "Canceled"
	}
}
