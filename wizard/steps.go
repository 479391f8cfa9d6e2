package wizard

import "fmt"

type Section string

const (
	SectionBasic      Section = "basic"
	SectionInstructor Section = "instructor"
	SectionModules    Section = "modules"
	SectionQuizzes    Section = "quizzes"
	SectionSettings   Section = "settings"
)

type SectionSpec struct {
	Name  Section `json:"name"`
	Steps int     `json:"steps"`
}

// DefaultSections is the tab layout of the course form, in order.
var DefaultSections = []SectionSpec{
	{Name: SectionBasic, Steps: 2},
	{Name: SectionInstructor, Steps: 1},
	{Name: SectionModules, Steps: 2},
	{Name: SectionQuizzes, Steps: 2},
	{Name: SectionSettings, Steps: 1},
}

// Stepper tracks the current tab and the 1-based step inside it.
type Stepper struct {
	Sections []SectionSpec `json:"sections"`
	Section  int           `json:"section"`
	Step     int           `json:"step"`
}

func NewStepper() *Stepper {
	sections := make([]SectionSpec, len(DefaultSections))
	copy(sections, DefaultSections)
	return &Stepper{Sections: sections, Step: 1}
}

func (s *Stepper) Current() Section { return s.Sections[s.Section].Name }

func (s *Stepper) TotalSteps() int {
	total := 0
	for _, sec := range s.Sections {
		total += sec.Steps
	}
	return total
}

// Position is the 1-based step number across all sections.
func (s *Stepper) Position() int {
	pos := s.Step
	for i := 0; i < s.Section; i++ {
		pos += s.Sections[i].Steps
	}
	return pos
}

func (s *Stepper) last() int { return len(s.Sections) - 1 }

func (s *Stepper) IsFinalStep() bool {
	return s.Section == s.last() && s.Step == s.Sections[s.Section].Steps
}

func (s *Stepper) ShouldShowNextButton() bool { return !s.IsFinalStep() }

// NextStep advances one step, rolling into the next section's first step at
// a section boundary. It reports false when already on the final step.
func (s *Stepper) NextStep() bool {
	if s.IsFinalStep() {
		return false
	}
	if s.Step < s.Sections[s.Section].Steps {
		s.Step++
		return true
	}
	s.Section++
	s.Step = 1
	return true
}

// PrevStep moves back one step, rolling into the previous section's last step.
func (s *Stepper) PrevStep() bool {
	if s.Step > 1 {
		s.Step--
		return true
	}
	if s.Section == 0 {
		return false
	}
	s.Section--
	s.Step = s.Sections[s.Section].Steps
	return true
}

// GoTo jumps to the first step of the named section.
func (s *Stepper) GoTo(name Section) error {
	for i, sec := range s.Sections {
		if sec.Name == name {
			s.Section = i
			s.Step = 1
			return nil
		}
	}
	return fmt.Errorf("%w: section %q", ErrBadTarget, name)
}
