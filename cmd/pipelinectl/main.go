// Command pipelinectl is a thin HTTP client for the pipeline's API server,
// grounded on the teacher's cmd/cli (rootCmd + persistent flags + subcommand
// tree + readURLsFromFile helper + emoji-laden terminal output), rewired to
// call the HTTP Surface instead of embedding a downloader/storage instance.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiBaseURL string
	skip       int
	take       int
)

var rootCmd = &cobra.Command{
	Use:     "pipelinectl",
	Short:   "Client for the video conversion pipeline's API server",
	Version: "1.0.0",
}

var submitCmd = &cobra.Command{
	Use:   "submit [url]...",
	Short: "Submit one or more video URLs for conversion",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitURLs(args)
	},
}

var submitFileCmd = &cobra.Command{
	Use:   "submit-file [urls-file]",
	Short: "Submit video URLs read from a file, one per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		urls, err := readURLsFromFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading URLs file: %w", err)
		}
		if len(urls) == 0 {
			fmt.Println("no URLs found in file")
			return nil
		}
		return submitURLs(urls)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show a job's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job map[string]interface{}
		if err := getJSON("/api/videoconverter/status/"+args[0], &job); err != nil {
			return err
		}
		printJSON(job)
		return nil
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "batch-status [batch-id]",
	Short: "Show a batch's aggregate status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var batch map[string]interface{}
		if err := getJSON("/api/videoconverter/batch-status/"+args[0], &batch); err != nil {
			return err
		}
		printJSON(batch)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var jobs []map[string]interface{}
		path := fmt.Sprintf("/api/videoconverter/jobs?skip=%d&take=%d", skip, take)
		if err := getJSON(path, &jobs); err != nil {
			return err
		}
		fmt.Printf("📚 Jobs (%d)\n", len(jobs))
		for i, job := range jobs {
			fmt.Printf("\n%d. %v\n", i+1, job["jobId"])
			fmt.Printf("   Status: %v | URL: %v\n", job["status"], job["videoUrl"])
		}
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Force an immediate stale-job recovery pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(apiBaseURL+"/api/videoconverter/recovery/force", "application/json", nil)
		if err != nil {
			return fmt.Errorf("error calling recovery endpoint: %w", err)
		}
		defer resp.Body.Close()

		var result map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
		fmt.Printf("♻️  recovered %v stale jobs\n", result["recoveredCount"])
		return nil
	},
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Show queue and recovery diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var diag map[string]interface{}
		if err := getJSON("/api/videoconverter/diagnostics", &diag); err != nil {
			return err
		}
		printJSON(diag)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [batch-id] [output-file]",
	Short: "Download a batch's results as an XLSX workbook",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchID, outPath := args[0], args[1]
		resp, err := http.Post(apiBaseURL+"/api/videoconverter/batch/"+batchID+"/export?format=xlsx", "application/json", nil)
		if err != nil {
			return fmt.Errorf("error calling export endpoint: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("export failed: %s: %s", resp.Status, body)
		}

		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("error creating output file: %w", err)
		}
		defer f.Close()
		if _, err := io.Copy(f, resp.Body); err != nil {
			return fmt.Errorf("error writing output file: %w", err)
		}
		fmt.Printf("✅ exported batch %s to %s\n", batchID, outPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api", "http://localhost:8080", "pipeline API base URL")
	listCmd.Flags().IntVar(&skip, "skip", 0, "number of jobs to skip")
	listCmd.Flags().IntVar(&take, "take", 20, "max number of jobs to return")

	rootCmd.AddCommand(submitCmd, submitFileCmd, statusCmd, batchStatusCmd, listCmd, recoverCmd, diagnosticsCmd, exportCmd)
}

func submitURLs(urls []string) error {
	body, err := json.Marshal(map[string][]string{"videoUrls": urls})
	if err != nil {
		return fmt.Errorf("error encoding request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(apiBaseURL+"/api/videoconverter/to-mp3", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error submitting batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("submit failed: %s: %s", resp.Status, respBody)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	fmt.Printf("🚀 submitted batch %v\n", result["batchId"])
	printJSON(result)
	return nil
}

func getJSON(path string, out interface{}) error {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(apiBaseURL + path)
	if err != nil {
		return fmt.Errorf("error calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed: %s: %s", path, resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(data))
}

func readURLsFromFile(filename string) ([]string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	var urls []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
