package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var manager *dotdir.Manager

	BeforeEach(func() {
		manager = dotdir.NewManager()
	})

	It("uses the override when given and creates it", func() {
		override := filepath.Join(GinkgoT().TempDir(), "custom-recall")

		target, err := manager.Target(override)
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(override))

		info, err := os.Stat(target)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("prefers a local .recall directory over home", func() {
		workdir := GinkgoT().TempDir()
		Expect(os.Mkdir(filepath.Join(workdir, ".recall"), 0o755)).To(Succeed())

		cwd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(workdir)).To(Succeed())
		DeferCleanup(func() {
			Expect(os.Chdir(cwd)).To(Succeed())
		})

		target, err := manager.Target("")
		Expect(err).NotTo(HaveOccurred())

		resolved, err := filepath.EvalSymlinks(target)
		Expect(err).NotTo(HaveOccurred())
		expected, err := filepath.EvalSymlinks(filepath.Join(workdir, ".recall"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved).To(Equal(expected))
	})

	It("falls back to the home directory", func() {
		workdir := GinkgoT().TempDir()
		home := GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", home)

		cwd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(workdir)).To(Succeed())
		DeferCleanup(func() {
			Expect(os.Chdir(cwd)).To(Succeed())
		})

		target, err := manager.Target("")
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(filepath.Join(home, ".recall")))

		info, err := os.Stat(target)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})
})
