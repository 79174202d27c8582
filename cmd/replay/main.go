// Replay tool for testing Kestrel against labeled fraud data.
//
// Usage:
//   go run cmd/replay/main.go -csv /path/to/events.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled payment events from CSV (with fraud labels)
//   2. Sends each event to Kestrel for assessment, carrying the
//      subject's accumulated history so history-based scorers engage
//   3. Compares Kestrel's action (block/manual_review vs auto_approve)
//      with the actual fraud labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns (header required, order free):
//   subject_id, type, amount, currency, device_id, location,
//   new_device, new_location, occurred_at, is_fraud
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledEvent is one row from the replay dataset.
type LabeledEvent struct {
	SubjectID   string
	Type        string
	Amount      float64
	Currency    string
	DeviceID    string
	Location    string
	NewDevice   bool
	NewLocation bool
	OccurredAt  time.Time
	IsFraud     bool
}

// AssessRequest is the Kestrel API request format.
type AssessRequest struct {
	SubjectID  string         `json:"subjectId"`
	Type       string         `json:"type"`
	Amount     Amount         `json:"amount"`
	Session    Session        `json:"session"`
	OccurredAt time.Time      `json:"occurredAt,omitempty"`
	History    []HistoryEntry `json:"history,omitempty"`
}

type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type Session struct {
	DeviceID    string `json:"deviceId,omitempty"`
	Location    string `json:"location,omitempty"`
	NewDevice   bool   `json:"newDevice"`
	NewLocation bool   `json:"newLocation"`
}

type HistoryEntry struct {
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AssessResponse is the Kestrel API response format.
type AssessResponse struct {
	AssessmentID string   `json:"assessmentId"`
	Score        float64  `json:"score"`
	Level        string   `json:"level"`
	Action       string   `json:"action"` // auto_approve, manual_review, block
	Degraded     bool     `json:"degraded"`
	TicketID     string   `json:"ticketId"`
	Reasons      []string `json:"reasons"`
}

// prepared is an event plus the request built for it. Requests carry a
// history snapshot, so they are assembled sequentially before fan-out.
type prepared struct {
	event LabeledEvent
	req   AssessRequest
}

// Metrics tracks replay results.
type Metrics struct {
	TruePositives  int64 // Fraud that was flagged
	FalsePositives int64 // Non-fraud that was flagged
	TrueNegatives  int64 // Non-fraud that was approved
	FalseNegatives int64 // Fraud that was approved (missed!)

	Blocked  int64
	Reviewed int64
	Approved int64
	Degraded int64

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled events CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "replay-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum events to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudOnly := flag.Bool("fraud-only", false, "Only replay fraud events")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for non-fraud (0.0-1.0)")
	historyDepth := flag.Int("history", 10, "History entries carried per request")
	verbose := flag.Bool("verbose", false, "Print each event result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: replay -csv /path/to/events.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           KESTREL REPLAY - Labeled Fraud Detection            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Fraud Only:  %v\n", *fraudOnly)
	fmt.Printf("Sample Rate: %.2f\n", *sampleRate)
	fmt.Printf("History:     %d entries per request\n", *historyDepth)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	fmt.Printf("\nReading labeled events from %s...\n", *csvPath)
	events, err := readEventsCSV(*csvPath, *limit, *fraudOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d events\n", len(events))

	fraudCount := 0
	for _, e := range events {
		if e.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(events)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(events)-fraudCount, 100*float64(len(events)-fraudCount)/float64(len(events)))

	work := prepareRequests(events, *historyDepth)

	fmt.Printf("\nRunning replay with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runReplay(work, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readEventsCSV(path string, limit int, fraudOnly bool, sampleRate float64) ([]LabeledEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"subject_id", "type", "amount", "is_fraud"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	truthy := func(v string) bool { return v == "1" || strings.EqualFold(v, "true") }

	var events []LabeledEvent
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isFraud := truthy(field(record, "is_fraud"))

		if fraudOnly && !isFraud {
			continue
		}

		// Sample non-fraud events
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		amount, _ := strconv.ParseFloat(field(record, "amount"), 64)
		currency := field(record, "currency")
		if currency == "" {
			currency = "USD"
		}

		var occurred time.Time
		if raw := field(record, "occurred_at"); raw != "" {
			occurred, _ = time.Parse(time.RFC3339, raw)
		}

		events = append(events, LabeledEvent{
			SubjectID:   field(record, "subject_id"),
			Type:        field(record, "type"),
			Amount:      amount,
			Currency:    currency,
			DeviceID:    field(record, "device_id"),
			Location:    field(record, "location"),
			NewDevice:   truthy(field(record, "new_device")),
			NewLocation: truthy(field(record, "new_location")),
			OccurredAt:  occurred,
			IsFraud:     isFraud,
		})

		if limit > 0 && len(events) >= limit {
			break
		}
	}

	return events, nil
}

// prepareRequests builds one request per event, attaching the subject's
// history accumulated from earlier rows in file order.
func prepareRequests(events []LabeledEvent, historyDepth int) []prepared {
	histories := make(map[string][]HistoryEntry)
	out := make([]prepared, 0, len(events))

	for _, e := range events {
		history := histories[e.SubjectID]
		if len(history) > historyDepth {
			history = history[len(history)-historyDepth:]
		}

		out = append(out, prepared{
			event: e,
			req: AssessRequest{
				SubjectID: e.SubjectID,
				Type:      e.Type,
				Amount:    Amount{Value: e.Amount, Currency: e.Currency},
				Session: Session{
					DeviceID:    e.DeviceID,
					Location:    e.Location,
					NewDevice:   e.NewDevice,
					NewLocation: e.NewLocation,
				},
				OccurredAt: e.OccurredAt,
				History:    append([]HistoryEntry(nil), history...),
			},
		})

		occurred := e.OccurredAt
		if occurred.IsZero() {
			occurred = time.Now().UTC()
		}
		histories[e.SubjectID] = append(histories[e.SubjectID], HistoryEntry{
			Amount:     e.Amount,
			OccurredAt: occurred,
		})
	}

	return out
}

func runReplay(work []prepared, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	queue := make(chan prepared, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for p := range queue {
				start := time.Now()
				result, err := assessEvent(client, baseURL, tenantID, p.req)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", p.event.SubjectID, err)
					}
					continue
				}

				if p.event.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				switch result.Action {
				case "block":
					atomic.AddInt64(&metrics.Blocked, 1)
				case "manual_review":
					atomic.AddInt64(&metrics.Reviewed, 1)
				case "auto_approve":
					atomic.AddInt64(&metrics.Approved, 1)
				}
				if result.Degraded {
					atomic.AddInt64(&metrics.Degraded, 1)
				}

				// Anything the policy did not auto-approve counts as flagged
				predicted := result.Action != "auto_approve"
				actual := p.event.IsFraud

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					name := p.event.SubjectID
					if len(name) > 10 {
						name = name[:10]
					}
					fmt.Printf("%s %-10s | Type: %-16s | Amount: $%10.2f | Fraud: %-5v | Kestrel: %-13s (%.4f)\n",
						status,
						name,
						p.event.Type,
						p.event.Amount,
						p.event.IsFraud,
						result.Action,
						result.Score,
					)
				}
			}
		}()
	}

	for _, p := range work {
		queue <- p
	}
	close(queue)

	wg.Wait()

	return metrics
}

func assessEvent(client *http.Client, baseURL, tenantID string, req AssessRequest) (*AssessResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/assess", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AssessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        REPLAY RESULTS                         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n⚖️  ACTION BREAKDOWN\n")
	fmt.Printf("   Blocked:          %d\n", m.Blocked)
	fmt.Printf("   Manual Review:    %d\n", m.Reviewed)
	fmt.Printf("   Auto-Approved:    %d\n", m.Approved)
	fmt.Printf("   Degraded:         %d\n", m.Degraded)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    FLAG        PASS")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged events, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		eps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f events/sec\n", eps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - alerts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
