package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gradecli/internal/config"
	apperrors "gradecli/internal/errors"
	"gradecli/internal/grading"
	"gradecli/internal/query"
	"gradecli/pkg/contracts/domain"
)

// updateContext applies fn to the context in effect and saves the settings.
func (a *app) updateContext(fn func(st *config.Settings, name string, c *domain.ContextSettings) error) error {
	_, name, err := a.loadSettings()
	if err != nil {
		return err
	}
	_, err = a.settings.Update(func(st *config.Settings) error {
		return fn(st, name, st.Context(name))
	})
	return err
}

func newContextCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "context",
		Aliases: []string{"ctx"},
		Short:   "Manage grading contexts",
		Long: `A context is a named grading setup, usually one per school or class:
maximum points, scale, rounding and sheet weights.

Commands act on the current context unless --context names another one.`,
	}
	cmd.AddCommand(
		newContextListCommand(a),
		newContextShowCommand(a),
		newContextSwitchCommand(a),
		newContextCreateCommand(a),
		newContextRenameCommand(a),
		newContextDeleteCommand(a),
		newContextSetCommand(a),
		newScaleCommand(a),
		newWeightsCommand(a),
	)
	return cmd
}

func newContextListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List contexts",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			st, err := a.settings.Load()
			if err != nil {
				return err
			}
			if a.flags.jsonOutput {
				return printJSON(a.out, map[string]any{
					"current":  st.CurrentContext,
					"contexts": st.Names(),
				})
			}
			for _, n := range st.Names() {
				marker := " "
				if n == st.CurrentContext {
					marker = "*"
				}
				fmt.Fprintf(a.out, "%s %s\n", marker, n)
			}
			return nil
		},
	}
}

func newContextShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [NAME]",
		Short: "Show a context's grading setup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, name, err := a.loadSettings()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				name = args[0]
				if _, ok := st.Contexts[name]; !ok {
					return apperrors.NewNotFoundError(fmt.Sprintf("context %q", name))
				}
			}
			c := st.Context(name)
			if a.flags.jsonOutput {
				return printJSON(a.out, c)
			}

			fmt.Fprintln(a.out, name)
			printKeyValue(a.out, "Max points", query.CellText(c.MaxPoints))
			printKeyValue(a.out, "Scale", c.ScaleActive)
			printKeyValue(a.out, "Round before grading", strconv.FormatBool(c.RoundPercentBeforeGrade))
			printKeyValue(a.out, "Weighted mean", strconv.FormatBool(c.UseWeightedMean))
			printKeyValue(a.out, "Weight profile", orDash(c.ActiveWeightProfile))
			printKeyValue(a.out, "Sheet weights", weightsText(c.WeightsBySheet))
			printKeyValue(a.out, "Last file", orDash(c.LastFile))
			printKeyValue(a.out, "Last output dir", orDash(c.LastOutputDir))
			fmt.Fprintln(a.out)
			return printScale(a, c.ActiveScale())
		},
	}
}

func newContextSwitchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch NAME",
		Short: "Make a context current, creating it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := a.settings.Update(func(st *config.Settings) error {
				return st.Switch(args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Current context: %s\n", st.CurrentContext)
			return nil
		},
	}
}

func newContextCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a context with default settings and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := a.settings.Update(func(st *config.Settings) error {
				return st.Create(args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created context %s\n", st.CurrentContext)
			return nil
		},
	}
}

func newContextRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a context",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if _, err := a.settings.Update(func(st *config.Settings) error {
				return st.Rename(args[0], args[1])
			}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Renamed %s to %s\n", args[0], strings.TrimSpace(args[1]))
			return nil
		},
	}
}

func newContextDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a context; at least one must remain",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := a.settings.Update(func(st *config.Settings) error {
				return st.Delete(args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %s; current context: %s\n", args[0], st.CurrentContext)
			return nil
		},
	}
}

func newContextSetCommand(a *app) *cobra.Command {
	var (
		maxPoints      float64
		round          bool
		weighted       bool
		openAfter      bool
		defaultSchool  string
		defaultSubject string
		defaultClass   string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change grading options of a context",
		Long: `Change grading options of a context. Only the given flags change.

The --default-* flags are shared by all contexts and fill subject, class and
school when neither a flag nor a META sheet provides them.

Examples:
  gradecli context set --max-points 40 --round
  gradecli context set --default-school "SP Górzno"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			changed := false
			for _, f := range []string{"max-points", "round", "weighted", "open-after", "default-school", "default-subject", "default-class"} {
				changed = changed || fs.Changed(f)
			}
			if !changed {
				return apperrors.NewValidationError("flags", "nothing to change")
			}
			if fs.Changed("max-points") && !(maxPoints > 0) {
				return apperrors.NewValidationError("max_points", "must be a positive number")
			}
			return a.updateContext(func(st *config.Settings, _ string, c *domain.ContextSettings) error {
				if fs.Changed("max-points") {
					c.MaxPoints = maxPoints
				}
				if fs.Changed("round") {
					c.RoundPercentBeforeGrade = round
				}
				if fs.Changed("weighted") {
					c.UseWeightedMean = weighted
				}
				if fs.Changed("open-after") {
					c.OpenAfter = openAfter
				}
				if fs.Changed("default-school") {
					st.DefaultSchool = strings.TrimSpace(defaultSchool)
				}
				if fs.Changed("default-subject") {
					st.DefaultSubject = strings.TrimSpace(defaultSubject)
				}
				if fs.Changed("default-class") {
					st.DefaultClass = strings.TrimSpace(defaultClass)
				}
				return nil
			})
		},
	}

	fs := cmd.Flags()
	fs.Float64Var(&maxPoints, "max-points", 0, "maximum points of a test")
	fs.BoolVar(&round, "round", false, "round the percent before grading")
	fs.BoolVar(&weighted, "weighted", false, "report the weighted mean over sheets")
	fs.BoolVar(&openAfter, "open-after", true, "remembered for front ends that open the result")
	fs.StringVar(&defaultSchool, "default-school", "", "default school")
	fs.StringVar(&defaultSubject, "default-subject", "", "default subject")
	fs.StringVar(&defaultClass, "default-class", "", "default class")
	return cmd
}

func newScaleCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Manage grading scales of a context",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom scale profiles",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			st, name, err := a.loadSettings()
			if err != nil {
				return err
			}
			c := st.Context(name)
			for _, n := range config.ScaleProfileNames(c) {
				marker := " "
				if n == c.ScaleActive {
					marker = "*"
				}
				fmt.Fprintf(a.out, "%s %s\n", marker, n)
			}
			return nil
		},
	}

	use := &cobra.Command{
		Use:   "use NAME",
		Short: "Activate a scale profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.updateContext(func(_ *config.Settings, _ string, c *domain.ContextSettings) error {
				return config.SelectScale(c, args[0])
			})
		},
	}

	var bands []string
	save := &cobra.Command{
		Use:   "save NAME",
		Short: "Save a custom scale and activate it",
		Long: `Save a custom scale and activate it. Bands are given best first as
LOW:HIGH:LABEL; a percent p falls in a band when LOW <= p < HIGH+1.

Example:
  gradecli context scale save Liceum \
    --band "91:100:5 (bardzo dobry)" --band "75:90:4 (dobry)" \
    --band "50:74:3 (dostateczny)" --band "30:49:2 (dopuszczający)" \
    --band "0:29:1 (niedostateczny)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rule, err := parseBands(bands)
			if err != nil {
				return err
			}
			if err := grading.ValidateScale(rule); err != nil {
				return err
			}
			return a.updateContext(func(_ *config.Settings, _ string, c *domain.ContextSettings) error {
				return config.SaveCustomScale(c, args[0], rule)
			})
		},
	}
	save.Flags().StringArrayVar(&bands, "band", nil, "band as LOW:HIGH:LABEL (repeatable)")
	_ = save.MarkFlagRequired("band")

	cmd.AddCommand(list, use, save)
	return cmd
}

func newWeightsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Manage sheet weights of a context",
		Long: `Sheet weights feed the weighted mean over sheets. A sheet without a
weight counts 1; a weight of 0 or less leaves the sheet out.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List weight profiles and the weights in use",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			st, name, err := a.loadSettings()
			if err != nil {
				return err
			}
			c := st.Context(name)
			printKeyValue(a.out, "In use", weightsText(c.WeightsBySheet))
			names := make([]string, 0, len(c.WeightProfiles))
			for n := range c.WeightProfiles {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				marker := " "
				if n == c.ActiveWeightProfile {
					marker = "*"
				}
				fmt.Fprintf(a.out, "%s %s: %s\n", marker, n, weightsText(c.WeightProfiles[n]))
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set SHEET=WEIGHT...",
		Short: "Replace the sheet weights in use",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			w, err := parseWeights(args)
			if err != nil {
				return err
			}
			return a.updateContext(func(_ *config.Settings, _ string, c *domain.ContextSettings) error {
				c.WeightsBySheet = w
				return nil
			})
		},
	}

	save := &cobra.Command{
		Use:   "save NAME [SHEET=WEIGHT...]",
		Short: "Save a weight profile, from the arguments or the weights in use",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var given domain.WeightProfile
			if len(args) > 1 {
				w, err := parseWeights(args[1:])
				if err != nil {
					return err
				}
				given = w
			}
			return a.updateContext(func(_ *config.Settings, _ string, c *domain.ContextSettings) error {
				if given == nil {
					given = c.WeightsBySheet
				}
				return config.SaveWeightProfile(c, args[0], given)
			})
		},
	}

	use := &cobra.Command{
		Use:   "use NAME",
		Short: "Activate a weight profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.updateContext(func(_ *config.Settings, _ string, c *domain.ContextSettings) error {
				return config.ActivateWeightProfile(c, args[0])
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a weight profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.updateContext(func(_ *config.Settings, _ string, c *domain.ContextSettings) error {
				config.DeleteWeightProfile(c, args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, set, save, use, del)
	return cmd
}

func printScale(a *app, rule domain.ScaleRule) error {
	if a.flags.jsonOutput {
		return printJSON(a.out, rule)
	}
	t := newTable(a.out, "Od (%)", "Do (%)", "Ocena")
	for _, b := range rule {
		t.row(query.CellText(b.Low), query.CellText(b.High), b.Label)
	}
	return t.flush()
}

// parseBands reads LOW:HIGH:LABEL specs. Decimal commas are accepted.
func parseBands(specs []string) (domain.ScaleRule, error) {
	rule := make(domain.ScaleRule, 0, len(specs))
	for i, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			return nil, apperrors.NewValidationError(fmt.Sprintf("band[%d]", i), "want LOW:HIGH:LABEL")
		}
		low, err := parseNumber(parts[0])
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("band[%d].low", i), err.Error())
		}
		high, err := parseNumber(parts[1])
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("band[%d].high", i), err.Error())
		}
		rule = append(rule, domain.ScaleBand{Low: low, High: high, Label: strings.TrimSpace(parts[2])})
	}
	return rule, nil
}

// parseWeights reads SHEET=WEIGHT pairs.
func parseWeights(specs []string) (domain.WeightProfile, error) {
	w := make(domain.WeightProfile, len(specs))
	for _, spec := range specs {
		i := strings.LastIndex(spec, "=")
		if i <= 0 {
			return nil, apperrors.NewValidationError("weight", fmt.Sprintf("%q: want SHEET=WEIGHT", spec))
		}
		v, err := parseNumber(spec[i+1:])
		if err != nil {
			return nil, apperrors.NewValidationError("weight", fmt.Sprintf("%q: %v", spec, err))
		}
		w[strings.TrimSpace(spec[:i])] = v
	}
	return w, nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
}

func weightsText(w domain.WeightProfile) string {
	if len(w) == 0 {
		return "-"
	}
	sheets := make([]string, 0, len(w))
	for s := range w {
		sheets = append(sheets, s)
	}
	sort.Strings(sheets)
	parts := make([]string, len(sheets))
	for i, s := range sheets {
		parts[i] = s + "=" + query.CellText(w[s])
	}
	return strings.Join(parts, ", ")
}
