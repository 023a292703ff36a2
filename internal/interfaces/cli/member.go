package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/KinKeep/internal/application/family"
	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// draftFlags binds the editable member fields to command flags.
type draftFlags struct {
	first, last, maiden  string
	birth, death         string
	gender, bio, photo   string
	father, fatherType   string
	mother, motherType   string
	spouse, marriageDate string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.first, "first", "", "first name")
	fl.StringVar(&f.last, "last", "", "last name")
	fl.StringVar(&f.maiden, "maiden", "", "maiden name")
	fl.StringVar(&f.birth, "birth", "", "birth date, ideally YYYY-MM-DD")
	fl.StringVar(&f.death, "death", "", "death date, ideally YYYY-MM-DD")
	fl.StringVar(&f.gender, "gender", "", "male, female, other or unknown")
	fl.StringVar(&f.bio, "bio", "", "short biography")
	fl.StringVar(&f.photo, "photo", "", "photo URL or data URL")
	fl.StringVar(&f.father, "father", "", "father's member id")
	fl.StringVar(&f.fatherType, "father-type", "", "biological, adoptive, step, foster, godparent or other")
	fl.StringVar(&f.mother, "mother", "", "mother's member id")
	fl.StringVar(&f.motherType, "mother-type", "", "biological, adoptive, step, foster, godparent or other")
	fl.StringVar(&f.spouse, "spouse", "", "spouse's member id")
	fl.StringVar(&f.marriageDate, "marriage-date", "", "marriage date, ideally YYYY-MM-DD")
}

// apply copies every flag the user set onto d.
func (f *draftFlags) apply(cmd *cobra.Command, d *member.Draft) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = strings.TrimSpace(v)
		}
	}
	set("first", &d.FirstName, f.first)
	set("last", &d.LastName, f.last)
	set("maiden", &d.MaidenName, f.maiden)
	set("birth", &d.BirthDate, f.birth)
	set("death", &d.DeathDate, f.death)
	set("bio", &d.Bio, f.bio)
	set("photo", &d.Photo, f.photo)
	set("father", &d.FatherID, f.father)
	set("mother", &d.MotherID, f.mother)
	set("spouse", &d.SpouseID, f.spouse)
	set("marriage-date", &d.MarriageDate, f.marriageDate)
	if cmd.Flags().Changed("gender") {
		d.Gender = member.Gender(strings.ToLower(strings.TrimSpace(f.gender)))
	}
	if cmd.Flags().Changed("father-type") {
		d.FatherKind = member.RelationshipKind(strings.ToLower(strings.TrimSpace(f.fatherType)))
	}
	if cmd.Flags().Changed("mother-type") {
		d.MotherKind = member.RelationshipKind(strings.ToLower(strings.TrimSpace(f.motherType)))
	}
}

// NewMemberCmd creates the member command
func NewMemberCmd() *cobra.Command {
	memberCmd := &cobra.Command{
		Use:     "member",
		Aliases: []string{"members"},
		Short:   "Add, show, edit and remove family members",
	}
	memberCmd.AddCommand(
		newMemberListCmd(),
		newMemberShowCmd(),
		newMemberAddCmd(),
		newMemberUpdateCmd(),
		newMemberDeleteCmd(),
		newMemberCandidatesCmd(),
	)
	return memberCmd
}

func newMemberListCmd() *cobra.Command {
	var term, gender, view string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List members, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, &family.ListInput{Term: term, Gender: gender, View: view})
		},
	}
	cmd.Flags().StringVarP(&term, "search", "s", "", "match full or maiden name, case-insensitively")
	cmd.Flags().StringVarP(&gender, "gender", "g", "all", "gender tab: all, male or female")
	cmd.Flags().StringVar(&view, "view", "grid", "grid (newest first) or timeline (oldest birth first)")
	return cmd
}

func runList(cmd *cobra.Command, input *family.ListInput) error {
	svc, ctx, cancel, err := serviceFor(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	res, err := svc.List(ctx, input)
	if err != nil {
		return err
	}
	return PrintResult(cmd, memberList{res: res, term: input.Term})
}

func newMemberShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <id>",
		Aliases: []string{"get"},
		Short:   "Show a member with their relatives and memories",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			m, err := svc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			rel, err := svc.Relatives(ctx, args[0])
			if err != nil {
				return err
			}
			return PrintResult(cmd, memberDetail{Member: m, Relatives: rel})
		},
	}
}

func newMemberAddCmd() *cobra.Command {
	f := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a member",
		Example: `  kinkeep member add --first Mary --last Jones --maiden Smith --gender female --birth 1950-04-12
  kinkeep member add --first Tom --last Jones --father <id> --father-type adoptive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			var draft member.Draft
			f.apply(cmd, &draft)
			m, err := svc.Create(ctx, draft)
			if err != nil {
				return err
			}
			return printMember(cmd, m, fmt.Sprintf("added %s (%s)", m.FullName(), m.ID))
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("last")
	return cmd
}

func newMemberUpdateCmd() *cobra.Command {
	f := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a member; fields without a flag keep their value",
		Example: `  kinkeep member update <id> --death 2020
  kinkeep member update <id> --spouse ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			existing, err := svc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			draft := existing.ToDraft()
			f.apply(cmd, &draft)
			// memories are edited with the memory commands only
			draft.Memories = nil
			m, err := svc.Update(ctx, args[0], draft)
			if err != nil {
				return err
			}
			return printMember(cmd, m, fmt.Sprintf("updated %s", m.FullName()))
		},
	}
	f.register(cmd)
	return cmd
}

func newMemberDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a member and clear every link to them",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.InvalidParam("refusing to delete without --yes")
			}
			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			if err := svc.Delete(ctx, args[0]); err != nil {
				return err
			}
			PrintSuccess(cmd, "deleted "+args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

func newMemberCandidatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "candidates [id]",
		Short: "List who may be chosen as father, mother or spouse",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, ctx, cancel, err := serviceFor(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			c, err := svc.Candidates(ctx, id)
			if err != nil {
				return err
			}
			return PrintResult(cmd, candidateList{c})
		},
	}
}

// NewSearchCmd is a shortcut for member list --search.
func NewSearchCmd() *cobra.Command {
	var gender string
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Find members by full or maiden name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, &family.ListInput{Term: args[0], Gender: gender})
		},
	}
	cmd.Flags().StringVarP(&gender, "gender", "g", "all", "gender tab: all, male or female")
	return cmd
}

// NewTimelineCmd lists members by birth date, undated members first.
func NewTimelineCmd() *cobra.Command {
	var term, gender string
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "List members in birth order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, &family.ListInput{Term: term, Gender: gender, View: string(family.ViewTimeline)})
		},
	}
	cmd.Flags().StringVarP(&term, "search", "s", "", "match full or maiden name")
	cmd.Flags().StringVarP(&gender, "gender", "g", "all", "gender tab: all, male or female")
	return cmd
}

func printMember(cmd *cobra.Command, m *member.Member, msg string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err == nil && cliCtx.OutputFormat == "json" {
		return printJSON(cmd, m)
	}
	PrintSuccess(cmd, msg)
	return nil
}

func genderLabel(g member.Gender) string {
	switch g {
	case member.GenderMale:
		return color.CyanString("male")
	case member.GenderFemale:
		return color.MagentaString("female")
	}
	return string(g)
}

func displayName(m *member.Member) string {
	name := m.FullName()
	if m.MaidenName != "" {
		name += " (née " + m.MaidenName + ")"
	}
	return name
}

// memberList renders a ListResult.
type memberList struct {
	res  *family.ListResult
	term string
}

func (l memberList) JSON() interface{} { return l.res }

func (l memberList) TableHeaders() []string {
	return []string{"Name", "Lifespan", "Gender", "Memories", "ID"}
}

func (l memberList) TableRows() [][]string {
	rows := make([][]string, 0, len(l.res.Members))
	for i := range l.res.Members {
		s := &l.res.Members[i]
		rows = append(rows, []string{
			truncateString(displayName(&s.Member), 40),
			s.Lifespan,
			genderLabel(s.Gender),
			fmt.Sprintf("%d", len(s.Memories)),
			s.ID,
		})
	}
	return rows
}

func (l memberList) String() string {
	if len(l.res.Members) == 0 {
		if l.term != "" {
			return fmt.Sprintf("No members match %q.\n", l.term)
		}
		return "No members yet. Add one with: kinkeep member add --first <name> --last <name>\n"
	}
	var sb strings.Builder
	for i := range l.res.Members {
		s := &l.res.Members[i]
		fmt.Fprintf(&sb, "%-40s %-18s %s\n", truncateString(displayName(&s.Member), 40), s.Lifespan, color.HiBlackString(s.ID))
	}
	fmt.Fprintf(&sb, "\n%d of %d members (%s)\n", len(l.res.Members), l.res.Total, l.res.View)
	return sb.String()
}

// memberDetail renders one member with resolved relatives.
type memberDetail struct {
	Member    *member.Member    `json:"member"`
	Relatives *member.Relatives `json:"relatives"`
}

func (d memberDetail) String() string {
	m := d.Member
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %s\n", color.New(color.Bold).Sprint(displayName(m)), member.Lifespan(m))
	fmt.Fprintf(&sb, "  id:       %s\n", m.ID)
	fmt.Fprintf(&sb, "  gender:   %s\n", genderLabel(m.Gender))
	if added := unixMillis(m.CreatedAt); added != "" {
		fmt.Fprintf(&sb, "  added:    %s\n", added)
	}
	if m.BirthDate != "" {
		fmt.Fprintf(&sb, "  born:     %s\n", m.BirthDate)
	}
	if m.DeathDate != "" {
		fmt.Fprintf(&sb, "  died:     %s\n", m.DeathDate)
	}
	if rel := d.Relatives; rel != nil {
		if rel.Father != nil {
			fmt.Fprintf(&sb, "  father:   %s (%s)\n", rel.Father.FullName(), m.FatherKind)
		}
		if rel.Mother != nil {
			fmt.Fprintf(&sb, "  mother:   %s (%s)\n", rel.Mother.FullName(), m.MotherKind)
		}
		if rel.Spouse != nil {
			line := rel.Spouse.FullName()
			if m.MarriageDate != "" {
				line += ", married " + m.MarriageDate
			}
			fmt.Fprintf(&sb, "  spouse:   %s\n", line)
		}
		for _, c := range rel.Children {
			fmt.Fprintf(&sb, "  child:    %s\n", c.FullName())
		}
	}
	if m.Bio != "" {
		fmt.Fprintf(&sb, "\n  %s\n", m.Bio)
	}
	if len(m.Memories) > 0 {
		sb.WriteString("\n  Memories:\n")
		for _, mem := range m.Memories {
			content := mem.Content
			if mem.Kind != member.MemoryText {
				content = "(" + string(mem.Kind) + ")"
			}
			title := mem.Title
			if title != "" {
				title += ": "
			}
			fmt.Fprintf(&sb, "  - [%s] %s%s  %s\n", mem.Date, title, truncateString(content, 60), color.HiBlackString(mem.ID))
		}
	}
	return sb.String()
}

// candidateList renders relationship candidates.
type candidateList struct {
	c *family.Candidates
}

func (l candidateList) JSON() interface{} { return l.c }

func (l candidateList) TableHeaders() []string { return []string{"Role", "Name", "ID"} }

func (l candidateList) TableRows() [][]string {
	var rows [][]string
	add := func(role string, ms []member.Member) {
		for i := range ms {
			rows = append(rows, []string{role, ms[i].FullName(), ms[i].ID})
		}
	}
	add("father", l.c.Fathers)
	add("mother", l.c.Mothers)
	add("spouse", l.c.Spouses)
	return rows
}

func (l candidateList) String() string {
	var sb strings.Builder
	section := func(title string, ms []member.Member) {
		fmt.Fprintf(&sb, "%s (%d)\n", title, len(ms))
		for i := range ms {
			fmt.Fprintf(&sb, "  %-40s %s\n", ms[i].FullName(), ms[i].ID)
		}
	}
	section("Fathers", l.c.Fathers)
	section("Mothers", l.c.Mothers)
	section("Spouses", l.c.Spouses)
	return sb.String()
}
