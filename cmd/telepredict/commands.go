package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/account"
	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/internal/session"
	"github.com/spec-kit/telepredict/internal/worker"
	"github.com/spec-kit/telepredict/internal/workflow"
)

func loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an organization or a staff member",
	}
	cmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Account password")

	cmd.AddCommand(&cobra.Command{
		Use:   "client <company-id>",
		Short: "Log in as an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				state, err := account.NewAuthFlow(a.remote, a.session, a.logger).LoginClient(ctx, args[0], password)
				if err != nil {
					return err
				}
				printState(cmd.OutOrStdout(), state)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "staff <staff-id>",
		Short: "Log in as a staff member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				state, err := account.NewAuthFlow(a.remote, a.session, a.logger).LoginStaff(ctx, args[0], password)
				if err != nil {
					return err
				}
				printState(cmd.OutOrStdout(), state)
				return nil
			})
		},
	})
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session in every context",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := account.NewAuthFlow(a.remote, a.session, a.logger).Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				printState(cmd.OutOrStdout(), a.session.State())
				return nil
			})
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the session every time another context changes it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				printState(out, a.session.State())
				a.session.OnChange(func(state domain.SessionState) { printState(out, state) })
				done, err := worker.StartSessionSync(ctx, a.session, a.logger)
				if err != nil {
					return err
				}
				<-done
				return nil
			})
		},
	}
}

func registerCmd() *cobra.Command {
	var in account.RegisterInput
	var plan string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Sign an organization up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.PlanType = domain.PlanType(plan)
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := account.NewAuthFlow(a.remote, a.session, a.logger).Register(ctx, in); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Registration successful. You can now log in.")
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.CompanyID, "company-id", "", "Company id")
	f.StringVar(&in.CompanyName, "name", "", "Company name")
	f.StringVar(&in.CompanyAddress, "address", "", "Company address")
	f.StringVar(&in.ContactNo, "contact", "", "Contact number")
	f.StringVar(&in.Email, "email", "", "Company email")
	f.StringVarP(&in.Password, "password", "p", "", "Password")
	f.StringVar(&in.Password2, "confirm-password", "", "Password again")
	f.StringVar(&plan, "plan", string(domain.PlanBasic), "Plan: basic, standard or partner")
	return cmd
}

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the organization profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				profile, err := account.NewCompanyFlow(a.remote, a.logger).Profile(ctx)
				if err != nil {
					return err
				}
				printProfile(cmd.OutOrStdout(), profile)
				return nil
			})
		},
	}
}

func addStaffCmd() *cobra.Command {
	var req dto.AddStaffRequest
	cmd := &cobra.Command{
		Use:   "add-staff",
		Short: "Create a staff account when the plan has a free seat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				profile, err := account.NewCompanyFlow(a.remote, a.logger).AddStaff(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Staff %s added.\n", req.StaffID)
				printProfile(cmd.OutOrStdout(), profile)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.StaffID, "staff-id", "", "Staff id")
	f.StringVar(&req.Name, "name", "", "Full name")
	f.StringVar(&req.Email, "email", "", "Email")
	f.StringVarP(&req.Password, "password", "p", "", "Password")
	f.StringVar(&req.Password2, "confirm-password", "", "Password again")
	return cmd
}

func feedbackCmd() *cobra.Command {
	var score int
	var comment string
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Send a satisfaction score",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				resp, err := account.NewCompanyFlow(a.remote, a.logger).SubmitFeedback(ctx, score, comment)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&score, "score", 0, "Score from 1 to 5")
	cmd.Flags().StringVar(&comment, "comment", "", "Complaints or remarks")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past uploads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				items, err := account.NewStaffFlow(a.remote).History(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tFILE\tUPLOADED\tSTATUS")
				for _, it := range items {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", it.ID, it.Filename, it.UploadDate.Format("2006-01-02 15:04"), it.Status)
				}
				return w.Flush()
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export <upload-id>",
		Short: "Download the results of a past upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploadID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid upload id %q", args[0])
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				data, name, err := account.NewStaffFlow(a.remote).ExportUpload(ctx, uploadID)
				if err != nil {
					return err
				}
				return save(cmd.OutOrStdout(), pick(dir, a.cfg.Export.Dir), name, data)
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "out", "o", "", "Directory to write the file to")
	return cmd
}

func predictCmd() *cobra.Command {
	var export bool
	var dir string
	cmd := &cobra.Command{
		Use:   "predict <file.csv>",
		Short: "Upload a dataset, run predictions and optionally export the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				run := predictRun{
					session: a.session,
					remote:  a.remote,
					logger:  a.logger,
					metrics: a.metrics,
					export:  export,
					dir:     pick(dir, a.cfg.Export.Dir),
				}
				return run.execute(ctx, cmd.OutOrStdout(), workflow.File{Name: filepath.Base(args[0]), Content: content})
			})
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "Download the results after predicting")
	cmd.Flags().StringVarP(&dir, "out", "o", "", "Directory to write the export to")
	return cmd
}

// predictRun is one select, upload, predict and optional export pass. The job
// follows the session: a logout in any context discards it.
type predictRun struct {
	session *session.Manager
	remote  workflow.Remote
	logger  *zap.Logger
	metrics *observability.Metrics
	export  bool
	dir     string
}

func (r predictRun) execute(ctx context.Context, out io.Writer, file workflow.File) error {
	ctl := workflow.NewController(r.remote, r.session, r.logger, r.metrics)
	defer r.session.OnChange(ctl.FollowSession)()

	syncCtx, stop := context.WithCancel(ctx)
	done, err := worker.StartSessionSync(syncCtx, r.session, r.logger)
	if err != nil {
		stop()
		return err
	}
	defer func() {
		stop()
		<-done
	}()

	if _, err := ctl.Select(file); err != nil {
		return err
	}
	job, err := ctl.Upload(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Uploaded %s as #%d (%d rows, %d columns).\n", job.Filename, *job.UploadID, job.TotalRows, len(job.Columns))

	job, err = ctl.Predict(ctx)
	if err != nil {
		return err
	}
	s := job.Summary
	fmt.Fprintf(out, "Customers: %d  high risk: %d  medium risk: %d  low risk: %d\n",
		s.TotalCustomers, s.HighRiskCount, s.MediumRiskCount, s.LowRiskCount)

	if !r.export {
		return nil
	}
	data, name, err := ctl.Export(ctx)
	if err != nil {
		return err
	}
	return save(out, r.dir, name, data)
}

func printState(w io.Writer, s domain.SessionState) {
	if !s.IsAuthenticated {
		fmt.Fprintln(w, "Not logged in.")
		return
	}
	fmt.Fprintf(w, "Logged in as %s (%s).\n", s.DisplayName, s.Role)
}

func printProfile(w io.Writer, p dto.ProfileResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Company:\t%s (%s)\n", p.ClientInfo.CompanyName, p.ClientInfo.CompanyID)
	fmt.Fprintf(tw, "Email:\t%s\n", p.ClientInfo.CompanyEmail)
	for _, s := range p.Subscriptions {
		limit := "unlimited"
		if s.MaxStaffAllowed != nil {
			limit = strconv.Itoa(*s.MaxStaffAllowed)
		}
		fmt.Fprintf(tw, "Plan:\t%s, %d of %s seats, %s to %s\n", s.PlanType, s.CurrentStaffCount, limit, s.StartDate, s.EndDate)
	}
	for _, m := range p.StaffMembers {
		fmt.Fprintf(tw, "Staff:\t%s\t%s\t%s\n", m.StaffID, m.Name, m.Email)
	}
	for _, f := range p.FeedbackHistory {
		fmt.Fprintf(tw, "Feedback:\t%s\t%d/5\t%s\n", f.FeedbackDate, f.FeedbackScore, f.ClientComplaints)
	}
	_ = tw.Flush()
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func save(out io.Writer, dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s (%d bytes).\n", path, len(data))
	return nil
}
