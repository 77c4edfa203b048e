package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/finey-app/finey/internal/models"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent lifecycle decisions",
	RunE:  runAudit,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the daemon",
	RunE:  runHealth,
}

var (
	auditTaskID string
	auditLimit  int
)

func init() {
	auditCmd.Flags().StringVar(&auditTaskID, "task", "", "Only show entries for this task")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum entries to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(auditLimit))
	if auditTaskID != "" {
		q.Set("task_id", auditTaskID)
	}

	resp, err := apiGet("/audit?" + q.Encode())
	if err != nil {
		return err
	}

	var entries []models.AuditEntry
	if err := json.Unmarshal(resp, &entries); err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tTASK\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Action,
			e.Outcome,
			e.TaskID,
			truncate(e.Details, 60),
		)
	}
	return w.Flush()
}

func runHealth(cmd *cobra.Command, args []string) error {
	health, err := CheckHealth()
	if err != nil {
		return err
	}
	if !health.OK {
		fmt.Println(outdatedStyle.Render(fmt.Sprintf("unhealthy (db: %s)", health.DB)))
		return fmt.Errorf("daemon unhealthy")
	}
	fmt.Println(completedStyle.Render(fmt.Sprintf("ok (version %s, db %s)", health.Version, health.DB)))
	return nil
}
