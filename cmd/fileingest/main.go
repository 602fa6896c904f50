package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

var composeFile string

// services are the docker-compose service names, in dependency order.
var services = []string{"postgres", "redis", "minio", "api", "worker"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fileingest: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fileingest",
		Short: "file-ingestion-API development CLI",
		Long: `fileingest drives the local ingestion stack: it starts and stops the
docker compose services (postgres, redis, minio, api, worker), tails their
logs, and seeds the running API with a generated CSV upload.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yml", "compose file for stack commands")
	cmd.AddCommand(newUpCmd(), newDownCmd(), newLogsCmd(), newSeedCmd())
	return cmd
}

func newUpCmd() *cobra.Command {
	var attach bool
	cmd := &cobra.Command{
		Use:       "up [service...]",
		Short:     "Build and start the ingestion stack",
		ValidArgs: services,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := knownServices(args); err != nil {
				return err
			}
			composeArgs := []string{"up", "--build"}
			if !attach {
				composeArgs = append(composeArgs, "-d")
			}
			return compose(cmd.Context(), append(composeArgs, args...)...)
		},
	}
	cmd.Flags().BoolVar(&attach, "attach", false, "stay attached instead of detaching")
	return cmd
}

func newDownCmd() *cobra.Command {
	var removeVolumes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop the ingestion stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			composeArgs := []string{"down"}
			if removeVolumes {
				composeArgs = append(composeArgs, "-v")
			}
			return compose(cmd.Context(), composeArgs...)
		},
	}
	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "also remove the postgres and minio volumes")
	return cmd
}

func newLogsCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:       "logs [service...]",
		Short:     "Tail logs from stack services",
		ValidArgs: services,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := knownServices(args); err != nil {
				return err
			}
			composeArgs := []string{"logs"}
			if follow {
				composeArgs = append(composeArgs, "-f")
			}
			return compose(cmd.Context(), append(composeArgs, args...)...)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "F", false, "stream logs continuously")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var apiURL string
	var rows int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upload a generated CSV to the running API",
		Long: `seed generates a CSV that passes ingestion validation (alphabetic names,
digit-only ids and phones, unique sha256 fingerprints) and posts it to the
upload endpoint, so a fresh stack has data to process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rows < 1 {
				return fmt.Errorf("rows must be positive, got %d", rows)
			}
			body, err := uploadSample(cmd.Context(), apiURL, sampleCSV(rows))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "http://localhost:8080", "base URL of the running API")
	cmd.Flags().IntVar(&rows, "rows", 5, "number of generated rows")
	return cmd
}

// sampleCSV renders a header plus rows that the row validator accepts. The
// fingerprint is a sha256 over a per-invocation nonce so repeated seeds do not
// collide on the uniqueness constraint.
func sampleCSV(rows int) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(model.Columns)
	nonce := time.Now().UnixNano()
	for i := 1; i <= rows; i++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("seed-%d-%d", nonce, i)))
		_ = w.Write([]string{
			"Jane",
			"Wanjiku",
			fmt.Sprintf("3%07d", i),
			"1990-01-01",
			fmt.Sprintf("%d Moi Avenue", i),
			"Kenya",
			fmt.Sprintf("07%08d", i),
			fmt.Sprintf("jane.wanjiku%d@example.com", i),
			hex.EncodeToString(sum[:]),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func uploadSample(ctx context.Context, apiURL string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "seed.csv")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(apiURL, "/") + "/v1/file-upload/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload rejected: %s: %s", resp.Status, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func knownServices(args []string) error {
	for _, name := range args {
		if !slices.Contains(services, name) {
			return fmt.Errorf("unknown service %q (expected one of %s)", name, strings.Join(services, ", "))
		}
	}
	return nil
}

func compose(ctx context.Context, args ...string) error {
	full := append([]string{"compose", "-f", composeFile}, args...)
	c := exec.CommandContext(ctx, "docker", full...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Stdin = os.Stdin
	return c.Run()
}
