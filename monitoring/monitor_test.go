package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/sarchlab/ptsim/mem/vm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Monitor", func() {
	var (
		machine *vm.Machine
		m       *Monitor
		handler http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	BeforeEach(func() {
		machine = vm.MakeBuilder().Build("Machine")
		m = NewMonitor()
		m.RegisterMachine(machine)
		handler = m.Handler()
	})

	It("should fall back to a random port for privileged ports", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should report the machine geometry", func() {
		rec := get("/api/spec")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(
			`{"page_size":256,"page_count":64,"mem_size":16384,"ptpt_offset":64}`))
	})

	It("should report the free map", func() {
		Expect(machine.CreateProcess(0, 2)).To(Succeed())

		rec := get("/api/freemap")

		var used []bool
		Expect(json.Unmarshal(rec.Body.Bytes(), &used)).To(Succeed())
		Expect(used).To(HaveLen(64))
		Expect(used[:5]).To(Equal([]bool{true, true, true, true, false}))
	})

	It("should report the control page as numbers", func() {
		Expect(machine.CreateProcess(2, 1)).To(Succeed())

		rec := get("/api/control_page")

		var image []int
		Expect(json.Unmarshal(rec.Body.Bytes(), &image)).To(Succeed())
		Expect(image).To(HaveLen(256))
		Expect(image[0]).To(Equal(1))
		Expect(image[1]).To(Equal(1))
		Expect(image[64+2]).To(Equal(1))
	})

	It("should report a process", func() {
		Expect(machine.CreateProcess(3, 2)).To(Succeed())

		rec := get("/api/process/3")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{
			"pid": 3,
			"page_table": 1,
			"mappings": [{"vpn": 0, "ppn": 2}, {"vpn": 1, "ppn": 3}]
		}`))
	})

	It("should report a process without an address space", func() {
		rec := get("/api/process/5")

		Expect(rec.Body.String()).To(MatchJSON(
			`{"pid": 5, "page_table": 0, "mappings": []}`))
	})

	It("should reject bad pids", func() {
		Expect(get("/api/process/64").Code).To(Equal(http.StatusBadRequest))
		Expect(get("/api/process/abc").Code).To(Equal(http.StatusBadRequest))
	})

	It("should serialize the machine", func() {
		rec := get("/api/machine")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Valid(rec.Body.Bytes())).To(BeTrue())
	})

	It("should report resource usage", func() {
		rec := get("/api/resource")

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	Context("when running commands", func() {
		post := func(body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/command",
				strings.NewReader(body))
			handler.ServeHTTP(rec, req)

			return rec
		}

		It("should refuse commands without a runner", func() {
			Expect(post("pfm").Code).To(Equal(http.StatusNotImplemented))
		})

		It("should return the script output", func() {
			var received []string
			m.RegisterCommandRunner(func(w io.Writer, args []string) error {
				received = args
				fmt.Fprintln(w, "done")
				return nil
			})

			rec := post("np 1 2\n  pfm ")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("done\n"))
			Expect(received).To(Equal([]string{"np", "1", "2", "pfm"}))
		})

		It("should reject malformed scripts", func() {
			m.RegisterCommandRunner(func(w io.Writer, args []string) error {
				return errors.New("unknown command")
			})

			rec := post("xyz")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("unknown command"))
		})

		It("should only accept POST", func() {
			Expect(get("/api/command").Code).
				To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Context("progress bars", func() {
		It("should list and complete bars", func() {
			bar := m.CreateProgressBar("script", 3)
			bar.IncrementInProgress(1)
			bar.MoveInProgressToFinished(1)

			rec := get("/api/progress")

			var bars []map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
			Expect(bars).To(HaveLen(1))
			Expect(bars[0]["name"]).To(Equal("script"))
			Expect(bars[0]["total"]).To(BeNumerically("==", 3))
			Expect(bars[0]["finished"]).To(BeNumerically("==", 1))
			Expect(bars[0]["in_progress"]).To(BeNumerically("==", 0))

			m.CompleteProgressBar(bar)

			Expect(get("/api/progress").Body.String()).To(MatchJSON(`[]`))
		})
	})

	Context("when serving", func() {
		It("should serve on a random port", func() {
			url, err := m.StartServer()
			Expect(err).NotTo(HaveOccurred())
			Expect(m.URL()).To(Equal(url))

			rsp, err := http.Get(url + "/api/spec")
			Expect(err).NotTo(HaveOccurred())
			Expect(rsp.StatusCode).To(Equal(http.StatusOK))
			Expect(rsp.Body.Close()).To(Succeed())

			Expect(m.StopServer(context.Background())).To(Succeed())
		})

		It("should not open a browser before serving", func() {
			Expect(m.OpenInBrowser()).NotTo(Succeed())
		})
	})
})
