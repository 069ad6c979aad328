package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/config"
	"gopkg.in/yaml.v3"
)

// cmdStart starts the daemon in the background
func cmdStart() error {
	if isRunning() {
		fmt.Println("✓ Daemon is already running")
		return nil
	}

	homeDir, err := config.EnsureHomeDir()
	if err != nil {
		return fmt.Errorf("setup home directory: %w", err)
	}

	daemonPath, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	cmd := exec.Command(daemonPath)
	cmd.Dir = homeDir
	cmd.Stdout = nil
	cmd.Stderr = nil

	// Detach from parent process (platform-specific)
	configureDaemonProcess(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Print("Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning() {
			fmt.Println(" ✓")
			fmt.Printf("Daemon running at %s\n", daemonAddr)
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'aimacademy logs')")
}

// cmdStop stops the daemon
func cmdStop() error {
	if !isRunning() {
		fmt.Println("Daemon is not running")
		return nil
	}

	homeDir, err := config.HomeDir()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(homeDir, pidFile))
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Print("Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning() {
			fmt.Println(" ✓")
			return nil
		}
		fmt.Print(".")
	}

	fmt.Println(" ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

// cmdStatus shows daemon status
func cmdStatus() error {
	if !isRunning() {
		fmt.Println("Status: stopped")
		return nil
	}

	var status struct {
		Status         string `json:"status"`
		Version        string `json:"version"`
		Uptime         int    `json:"uptime_seconds"`
		Storage        string `json:"storage"`
		Queue          bool   `json:"queue"`
		Challenges     int    `json:"challenges"`
		DebuggerLevels int    `json:"debugger_levels"`
		Badges         int    `json:"badges"`
		ActiveRuns     int    `json:"active_runs"`
	}
	if err := getJSON("/v1/status", &status); err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	queue := "off"
	if status.Queue {
		queue = "connected"
	}

	fmt.Printf("Status:      %s\n", status.Status)
	fmt.Printf("Version:     %s\n", status.Version)
	fmt.Printf("Uptime:      %s\n", time.Duration(status.Uptime)*time.Second)
	fmt.Printf("Storage:     %s\n", status.Storage)
	fmt.Printf("Queue:       %s\n", queue)
	fmt.Printf("Content:     %d challenges, %d debugger levels, %d badges\n",
		status.Challenges, status.DebuggerLevels, status.Badges)
	fmt.Printf("Active runs: %d\n", status.ActiveRuns)
	fmt.Printf("Address:     %s\n", daemonAddr)

	return nil
}

// cmdLogs shows the tail of the daemon log
func cmdLogs() error {
	homeDir, err := config.HomeDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(homeDir, "logs", "aimacademyd.log")

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("No log file found. Start the daemon first.")
		return nil
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	// Seek to end and go back ~4KB for recent logs
	info, _ := file.Stat()
	offset := info.Size() - 4096
	if offset < 0 {
		offset = 0
	}
	_, _ = file.Seek(offset, 0)

	reader := bufio.NewReader(file)
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}

	return scanner.Err()
}

// cmdConfig prints the effective configuration
func cmdConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	homeDir, err := config.HomeDir()
	if err != nil {
		return err
	}
	if cfg.Storage.DatabaseURL != "" {
		cfg.Storage.DatabaseURL = "<redacted>"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Printf("# %s\n", filepath.Join(homeDir, "config.yaml"))
	fmt.Print(string(data))
	return nil
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning() bool {
	resp, err := http.Get(daemonAddr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the aimacademyd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("aimacademyd"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "aimacademyd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	locations := []string{
		"/usr/local/bin/aimacademyd",
		"./aimacademyd",
		"./cmd/aimacademyd/aimacademyd",
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("aimacademyd binary not found (build with 'go build ./cmd/aimacademyd')")
}

// apiError is the daemon's JSON error body
type apiError struct {
	Message string `json:"error"`
	Status  int    `json:"status"`
	Details string `json:"details"`
}

func (e *apiError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func getJSON(path string, v any) error {
	resp, err := http.Get(daemonAddr + path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, v)
}

func postJSON(path string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := http.Post(daemonAddr+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	return decodeResponse(resp, v)
}

func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// requireDaemon fails fast when a player command has nothing to talk to
func requireDaemon() error {
	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'aimacademy start' first)")
	}
	return nil
}
