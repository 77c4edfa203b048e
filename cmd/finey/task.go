package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/finey-app/finey/internal/controlplane"
	"github.com/finey-app/finey/internal/lifecycle"
	"github.com/finey-app/finey/internal/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a task and authorize its deposit",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete [task-id]",
	Short: "Mark a task completed and release its deposit",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskComplete,
}

var taskIncompleteCmd = &cobra.Command{
	Use:   "incomplete [task-id]",
	Short: "Reopen a completed task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskIncomplete,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a task, refunding or forfeiting its deposit",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var (
	taskDue          string
	taskNotifyBefore int
	taskDeposit      int64
	taskJSON         bool
	proofPath        string
	proofDesc        string
)

// dueLayouts are the accepted --due formats, tried in order.
var dueLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskCompleteCmd, taskIncompleteCmd, taskDeleteCmd)

	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (RFC 3339, \"YYYY-MM-DD HH:MM\" or \"YYYY-MM-DD\"; default tomorrow 23:59:59)")
	taskAddCmd.Flags().IntVar(&taskNotifyBefore, "notify-before", -1, "Minutes before the due date to remind (default 30)")
	taskAddCmd.Flags().Int64Var(&taskDeposit, "deposit", 0, "Deposit in yen (default the deposit floor)")

	taskListCmd.Flags().BoolVar(&taskJSON, "json", false, "Print the raw task list as JSON")

	taskCompleteCmd.Flags().StringVar(&proofPath, "proof", "", "File to upload as proof of completion")
	taskCompleteCmd.Flags().StringVar(&proofDesc, "description", "", "Description stored with the proof")
}

func parseDue(s string) (time.Time, error) {
	for _, layout := range dueLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --due %q", s)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	req := controlplane.CreateTaskRequest{Name: args[0]}
	if taskDue != "" {
		due, err := parseDue(taskDue)
		if err != nil {
			return err
		}
		req.DueDate = &due
	}
	if cmd.Flags().Changed("notify-before") {
		req.NotifyBeforeMinutes = &taskNotifyBefore
	}
	if cmd.Flags().Changed("deposit") {
		req.Deposit = &taskDeposit
	}

	resp, err := apiPost("/tasks", req)
	if err != nil {
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("Created task: %s\n", task.ID)
	fmt.Printf("  Name:    %s\n", task.Name)
	fmt.Printf("  Due:     %s\n", formatDue(task.DueDate))
	fmt.Printf("  Deposit: ¥%d\n", task.Deposit)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tasks")
	if err != nil {
		return err
	}

	if taskJSON {
		fmt.Println(string(resp))
		return nil
	}

	var list controlplane.TaskListResponse
	if err := json.Unmarshal(resp, &list); err != nil {
		return err
	}

	if len(list.Tasks) == 0 {
		fmt.Println(mutedStyle.Render("No tasks found."))
		return nil
	}

	ov := list.Overview
	if len(ov.Upcoming) > 0 {
		fmt.Println(titleStyle.Render("Upcoming"))
		for _, day := range ov.Upcoming {
			fmt.Println(dayStyle.Render(day.Date))
			printEntries(day.Tasks, plain)
		}
	}
	if len(ov.Outdated) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Outdated"))
		printEntries(ov.Outdated, outdatedStyle.Render)
	}
	if len(ov.Completed) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Completed"))
		printEntries(ov.Completed, completedStyle.Render)
	}
	return nil
}

func plain(strs ...string) string {
	return strings.Join(strs, " ")
}

// printEntries aligns the rows first and styles whole lines after, since
// escape codes would throw off the column widths.
func printEntries(entries []lifecycle.Entry, render func(...string) string) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDUE\tDEPOSIT\tDELETABLE")
	for _, e := range entries {
		deletable := "no"
		if e.Deletable {
			deletable = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t¥%d\t%s\n",
			e.ID,
			truncate(e.Name, 40),
			formatDue(e.DueDate),
			e.Deposit,
			deletable,
		)
	}
	w.Flush()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	fmt.Println(mutedStyle.Render(lines[0]))
	for _, line := range lines[1:] {
		fmt.Println(render(line))
	}
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	var req controlplane.CompleteTaskRequest
	if proofPath != "" {
		proof, err := readProof(proofPath, proofDesc)
		if err != nil {
			return err
		}
		req.Proof = proof
	}

	resp, err := apiPost("/tasks/"+args[0]+"/complete", req)
	if err != nil {
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Println(completedStyle.Render(fmt.Sprintf("Completed task %s (%s)", task.ID, task.Name)))
	if task.ProofFileRef != "" {
		fmt.Printf("  Proof: %s\n", task.ProofFileRef)
	}
	return nil
}

func readProof(path, description string) (*models.Proof, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proof: %w", err)
	}
	return &models.Proof{
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Content:     content,
		Description: description,
	}, nil
}

func runTaskIncomplete(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/tasks/"+args[0]+"/incomplete", nil)
	if err != nil {
		return err
	}

	var task models.Task
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("Reopened task %s (%s)\n", task.ID, task.Name)
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	if err := apiDelete("/tasks/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s\n", args[0])
	return nil
}

func formatDue(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
