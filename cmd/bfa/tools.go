package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Print the estimated premium for a quote input",
	Example: `  bfa quote --age 30 --gender male --coverage 500000 --duration 20
  bfa quote --age 45 --gender female --coverage 250000 --duration 10 --smoker`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		age, _ := f.GetInt("age")
		gender, _ := f.GetString("gender")
		coverage, _ := f.GetFloat64("coverage")
		duration, _ := f.GetInt("duration")
		smoker, _ := f.GetBool("smoker")

		in := domain.QuoteInput{
			Age:            age,
			Gender:         domain.Gender(strings.ToLower(gender)),
			CoverageAmount: coverage,
			Duration:       duration,
			Smoker:         "no",
		}
		if smoker {
			in.Smoker = "yes"
		}
		if err := in.Validate(); err != nil {
			return err
		}

		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", service.CalculatePremium(in))
		return err
	},
}

var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "Print the dashboard navigation for a role",
	Example: `  bfa nav --role agent
  bfa nav --role admin --path /dashboard/manage-users`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("role")
		path, _ := cmd.Flags().GetString("path")

		role, err := domain.ParseRole(name)
		if err != nil {
			return err
		}
		entries := service.NavigationFor(role)

		out := struct {
			Role        domain.Role         `json:"role"`
			Title       string              `json:"title"`
			Nav         []domain.NavEntry   `json:"nav"`
			Breadcrumbs []domain.Breadcrumb `json:"breadcrumbs"`
		}{
			Role:        role,
			Title:       service.PageTitle(path, entries),
			Nav:         entries,
			Breadcrumbs: service.Breadcrumbs(path, entries),
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	quoteCmd.Flags().Int("age", 0, "applicant age (18-99)")
	quoteCmd.Flags().String("gender", "", "male, female or other")
	quoteCmd.Flags().Float64("coverage", 0, "coverage amount, at least 100000")
	quoteCmd.Flags().Int("duration", 0, "policy duration in years (5-50)")
	quoteCmd.Flags().Bool("smoker", false, "applicant smokes")
	for _, name := range []string{"age", "gender", "coverage", "duration"} {
		_ = quoteCmd.MarkFlagRequired(name)
	}

	navCmd.Flags().String("role", "", "admin, agent or customer")
	navCmd.Flags().String("path", "/dashboard", "current dashboard path")
	_ = navCmd.MarkFlagRequired("role")
}
