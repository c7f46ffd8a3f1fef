package formcoach

import (
	"fmt"
	"math"
	"strings"
)

// BuildSessionNotes turns a set summary into a short training note.
func BuildSessionNotes(s Summary, reps []RepRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Set: %s\n", s.Exercise)
	if s.Static {
		fmt.Fprintf(&b, "Hold %s with good form | Frames %d analyzed\n", formatDuration(s.HoldSeconds), s.FramesAnalyzed)
	} else {
		fmt.Fprintf(
			&b,
			"Reps %d | Form %d avg | Frames %d analyzed\n",
			s.TotalReps,
			s.AverageFormScore,
			s.FramesAnalyzed,
		)
	}
	if s.FramesGated > 0 || s.FramesRejected > 0 {
		fmt.Fprintf(&b, "Skipped frames: %d not in position, %d without a full skeleton\n", s.FramesGated, s.FramesRejected)
	}

	if s.TotalReps > 0 {
		b.WriteString("\nRep Quality\n")
		fmt.Fprintf(&b, "- Perfect (>= %d): %d\n", PerfectRepScore, s.PerfectReps)
		fmt.Fprintf(&b, "- Good (%d-%d): %d\n", GoodRepScore, PerfectRepScore-1, s.GoodReps)
		fmt.Fprintf(&b, "- Needs work (< %d): %d\n", GoodRepScore, s.NeedsWork)
		fmt.Fprintf(&b, "- Clean reps: %d of %d\n", s.CorrectReps, s.TotalReps)
	}

	if top := s.TopIssues(3); len(top) > 0 {
		b.WriteString("\nMost Frequent Issues\n")
		for _, issue := range top {
			fmt.Fprintf(&b, "- %s (%dx)\n", issue, s.IssueCounts[issue])
		}
	}

	if len(reps) > 0 {
		b.WriteString("\nReps\n")
		for _, rep := range reps {
			line := "clean"
			if len(rep.Issues) > 0 {
				line = strings.Join(rep.Issues, "; ")
			}
			fmt.Fprintf(&b, "- Rep %02d | %3d | %s\n", rep.Number, rep.FormScore, line)
		}
	}

	b.WriteString("\nCoaching Notes\n- ")
	b.WriteString(coachingAssessment(s))
	b.WriteByte('\n')

	return strings.TrimSpace(b.String())
}

func coachingAssessment(s Summary) string {
	if s.TotalReps == 0 {
		if s.HoldSeconds > 0 {
			return "Hold the straight body line a little longer each set before adding load."
		}
		return "No completed reps were detected; check camera framing and move through the full range."
	}
	switch {
	case s.AverageFormScore >= PerfectRepScore:
		return "Form was consistent across the set; progress load or volume next session."
	case s.AverageFormScore >= GoodRepScore:
		if top := s.TopIssues(1); len(top) > 0 {
			return fmt.Sprintf("Solid set. Focus cue for next time: %s.", strings.ToLower(top[0]))
		}
		return "Solid set with minor form drift."
	default:
		return "Form broke down on several reps; reduce load and slow the tempo until the issues clear."
	}
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	m := s / 60
	sec := s % 60
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
