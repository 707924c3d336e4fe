// Package monitoring turns a simulated machine into an HTTP server so that
// its state can be inspected and commands can be sent while it runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/ptsim/mem/vm"
	"github.com/sarchlab/ptsim/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// A CommandRunner executes a command script against the monitored machine
// and writes the script output to w. A returned error means the script was
// rejected.
type CommandRunner func(w io.Writer, args []string) error

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	machine    *vm.Machine
	runCommand CommandRunner
	portNumber int

	server *http.Server
	url    string

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterMachine registers the machine to be monitored.
func (m *Monitor) RegisterMachine(machine *vm.Machine) {
	m.machine = machine
}

// RegisterCommandRunner sets the function that serves /api/command.
func (m *Monitor) RegisterCommandRunner(runner CommandRunner) {
	m.runCommand = runner
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router that serves the monitoring API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/spec", m.reportSpec).Methods(http.MethodGet)
	r.HandleFunc("/api/freemap", m.reportFreeMap).Methods(http.MethodGet)
	r.HandleFunc("/api/control_page", m.reportControlPage).
		Methods(http.MethodGet)
	r.HandleFunc("/api/process/{pid}", m.reportProcess).
		Methods(http.MethodGet)
	r.HandleFunc("/api/machine", m.serializeMachine).Methods(http.MethodGet)
	r.HandleFunc("/api/command", m.command).Methods(http.MethodPost)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic(err)
		}
	}()

	return m.url, nil
}

// URL returns the address of the running server.
func (m *Monitor) URL() string {
	return m.url
}

// OpenInBrowser opens the monitoring page in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.url == "" {
		return errors.New("monitoring server is not running")
	}

	return browser.OpenURL(m.url + "/api/machine")
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) reportSpec(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.machine.Spec())
}

func (m *Monitor) reportFreeMap(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.machine.FreeMap())
}

func (m *Monitor) reportControlPage(w http.ResponseWriter, _ *http.Request) {
	image := m.machine.ControlPage()

	cells := make([]int, len(image))
	for i, b := range image {
		cells[i] = int(b)
	}

	m.writeJSON(w, cells)
}

type processRsp struct {
	PID       vm.PID       `json:"pid"`
	PageTable vm.PageNum   `json:"page_table"`
	Mappings  []vm.Mapping `json:"mappings"`
}

func (m *Monitor) reportProcess(w http.ResponseWriter, r *http.Request) {
	pidStr := mux.Vars(r)["pid"]

	pid, err := strconv.ParseUint(pidStr, 10, 32)
	if err != nil {
		m.badRequest(w, err)
		return
	}

	rsp := processRsp{PID: vm.PID(pid)}

	rsp.PageTable, err = m.machine.PageTableOf(rsp.PID)
	if err != nil {
		m.badRequest(w, err)
		return
	}

	rsp.Mappings, err = m.machine.Mappings(rsp.PID)
	if err != nil {
		m.badRequest(w, err)
		return
	}

	if rsp.Mappings == nil {
		rsp.Mappings = []vm.Mapping{}
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) serializeMachine(w http.ResponseWriter, _ *http.Request) {
	m.machine.Lock()
	defer m.machine.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.machine)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) command(w http.ResponseWriter, r *http.Request) {
	if m.runCommand == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		m.badRequest(w, err)
		return
	}

	buf := bytes.NewBuffer(nil)

	err = m.runCommand(buf, strings.Fields(string(body)))
	if err != nil {
		m.badRequest(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]*ProgressBar, len(m.progressBars))
	copy(bars, m.progressBars)
	m.progressBarsLock.Unlock()

	snapshots := make([]progressRsp, 0, len(bars))
	for _, b := range bars {
		snapshots = append(snapshots, b.snapshot())
	}

	m.writeJSON(w, snapshots)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) badRequest(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, "Error: %s", err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
