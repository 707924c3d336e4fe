package cmd

import (
	"os"
	"path/filepath"

	"github.com/sarchlab/ptsim/mem/vm"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Configuration", func() {
	lookupIn := func(env map[string]string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}
	}

	It("should use the defaults without variables", func() {
		spec, err := specFromEnv(lookupIn(nil))

		Expect(err).NotTo(HaveOccurred())
		Expect(spec).To(Equal(vm.Defaults()))
	})

	It("should derive the memory size and PTPT offset", func() {
		spec, err := specFromEnv(lookupIn(map[string]string{
			EnvPageSize:  "128",
			EnvPageCount: "32",
		}))

		Expect(err).NotTo(HaveOccurred())
		Expect(spec).To(Equal(vm.Spec{
			PageSize:   128,
			PageCount:  32,
			MemSize:    4096,
			PTPTOffset: 32,
		}))
		Expect(spec.Validate()).To(Succeed())
	})

	It("should keep explicit values", func() {
		spec, err := specFromEnv(lookupIn(map[string]string{
			EnvMemSize:    "1000",
			EnvPTPTOffset: "0x50",
		}))

		Expect(err).NotTo(HaveOccurred())
		Expect(spec.MemSize).To(Equal(uint64(1000)))
		Expect(spec.PTPTOffset).To(Equal(uint64(0x50)))
	})

	It("should reject non-numeric values", func() {
		_, err := specFromEnv(lookupIn(map[string]string{
			EnvPageCount: "many",
		}))

		Expect(err).To(MatchError(ContainSubstring(EnvPageCount)))
	})

	Context("with a dotenv file", func() {
		var envFile string

		BeforeEach(func() {
			envFile = filepath.Join(GinkgoT().TempDir(), "ptsim.env")

			DeferCleanup(func() {
				for _, key := range []string{
					EnvPageSize, EnvPageCount, EnvMemSize, EnvPTPTOffset,
				} {
					os.Unsetenv(key)
				}
			})
		})

		It("should load the geometry from the file", func() {
			Expect(os.WriteFile(envFile, []byte(
				"PTSIM_PAGE_SIZE=64\nPTSIM_PAGE_COUNT=16\n"), 0o600)).
				To(Succeed())

			spec, err := loadSpec(envFile)

			Expect(err).NotTo(HaveOccurred())
			Expect(spec.PageSize).To(Equal(uint64(64)))
			Expect(spec.PageCount).To(Equal(uint64(16)))
			Expect(spec.MemSize).To(Equal(uint64(1024)))
		})

		It("should refuse an invalid geometry", func() {
			Expect(os.WriteFile(envFile, []byte(
				"PTSIM_PAGE_SIZE=100\n"), 0o600)).To(Succeed())

			_, err := loadSpec(envFile)

			Expect(err).To(MatchError(ContainSubstring("not a power of two")))
		})

		It("should refuse a memory size that does not fit in 64 bits",
			func() {
				Expect(os.WriteFile(envFile, []byte(
					"PTSIM_PAGE_SIZE=0x8000000000000000\nPTSIM_PAGE_COUNT=2\n"),
					0o600)).To(Succeed())

				_, err := loadSpec(envFile)

				Expect(err).To(MatchError(ContainSubstring("memory size")))
			})

		It("should fail on a missing file", func() {
			_, err := loadSpec(envFile)

			Expect(err).To(HaveOccurred())
		})
	})
})
