package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/resumedl/internal/output"
	"github.com/tanq16/resumedl/internal/scheduler"
	"github.com/tanq16/resumedl/internal/session"
	"github.com/tanq16/resumedl/internal/utils"
)

var (
	outputDir     string
	workers       int
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	s3Profile     string
	debug         bool
)

var ResumedlVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "resumedl",
	Short:   "resumedl is a pausable, resumable single-stream downloader",
	Version: ResumedlVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputDir, "dir", "d", ".", "Download directory")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Number of downloads to run in parallel")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", utils.DefaultTimeout, "Connection and response-start timeout (eg. 5s, 1m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for idle connections")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser agent)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.PersistentFlags().StringVar(&s3Profile, "s3-profile", "", "AWS shared config profile for s3:// links")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
}

// sessionOptions builds the per-run session options from the global flags.
func sessionOptions() session.Options {
	ua := userAgent
	if ua == "randomize" {
		ua = utils.GetRandomUserAgent()
	}
	proxy, user, pass := proxyURL, proxyUsername, proxyPassword
	// credentials embedded in the proxy URL move to the explicit fields
	parsedProxy, err := u.Parse(proxy)
	if err == nil && parsedProxy.User != nil && user == "" {
		user = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			pass = password
		}
		parsedProxy.User = nil
		proxy = parsedProxy.String()
	}
	return session.Options{
		HTTP: utils.HTTPClientConfig{
			Timeout:       timeout,
			KATimeout:     kaTimeout,
			ProxyURL:      proxy,
			ProxyUsername: user,
			ProxyPassword: pass,
			UserAgent:     ua,
			Headers:       utils.ParseHeaderArgs(headers),
		},
		S3Profile: s3Profile,
	}
}

// withDisplay routes logs to a file in dir and runs fn under the live
// terminal display. Sessions must be created inside fn so their loggers
// pick up the file output.
func withDisplay(dir string, fn func(mgr *output.Manager) error) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(dir, utils.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	utils.SetLogOutput(logFile)
	defer utils.InitLogger(debug)

	mgr := output.NewManager()
	mgr.StartDisplay()
	err = fn(mgr)
	mgr.StopDisplay()
	return err
}

// runSessions hands prepared sessions to the scheduler and exits non-zero on
// any failure.
func runSessions(ctx context.Context, mgr *output.Manager, sessions []*session.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	err := scheduler.Run(ctx, sessions, workers, mgr)
	if err != nil {
		log.Error().Str("op", "cmd/run").Err(err).Msg("Downloads finished with failures")
	}
	return err
}

// createSessions resolves each link; resolution failures are shown on the
// display and returned together with the sessions that did resolve.
func createSessions(ctx context.Context, mgr *output.Manager, entries []BatchEntry) ([]*session.Session, bool) {
	opts := sessionOptions()
	var sessions []*session.Session
	failed := false
	for _, entry := range entries {
		s, err := session.New(ctx, entry.Link, entry.Dir, opts)
		if err != nil {
			log.Error().Str("op", "cmd/create").Err(err).Msgf("Cannot start %s", entry.Link)
			id := mgr.RegisterTask(entry.Link)
			mgr.ReportError(id, err)
			failed = true
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, failed
}

func exitOnFailure(err error, failed bool) {
	if err != nil || failed {
		output.PrintError("Encountered failed download(s)")
		os.Exit(1)
	}
}
