package utils_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bootforge/bootforge/internal/utils"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DistroName", func() {
	writeOSRelease := func(content string) {
		path := filepath.Join(GinkgoT().TempDir(), "os-release")
		ExpectWithOffset(1, os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		ExpectWithOffset(1, os.Setenv("HOST_OS_RELEASE", path)).To(Succeed())
	}

	AfterEach(func() {
		Expect(os.Unsetenv("HOST_OS_RELEASE")).To(Succeed())
	})

	It("prefers PRETTY_NAME", func() {
		writeOSRelease("NAME=Testix\nPRETTY_NAME=\"Testix 1.0 (Granite)\"\n")
		Expect(utils.DistroName()).To(Equal("Testix 1.0 (Granite)"))
	})
	It("falls back to NAME", func() {
		writeOSRelease("NAME=Testix\nID=testix\n")
		Expect(utils.DistroName()).To(Equal("Testix"))
	})
	It("defaults to Linux when the file is unreadable", func() {
		Expect(os.Setenv("HOST_OS_RELEASE", "/nonexistent/os-release")).To(Succeed())
		Expect(utils.DistroName()).To(Equal("Linux"))
	})
	It("defaults to Linux when no name keys are present", func() {
		writeOSRelease("ID=testix\n")
		Expect(utils.DistroName()).To(Equal("Linux"))
	})
})

var _ = Describe("ExitStatus", func() {
	It("extracts the status of a failed command", func() {
		err := exec.Command("/bin/sh", "-c", "exit 3").Run()
		Expect(err).To(HaveOccurred())
		Expect(utils.ExitStatus(err)).To(Equal(3))
	})
	It("maps non-exec errors to 1", func() {
		Expect(utils.ExitStatus(errors.New("nope"))).To(Equal(1))
	})
})

var _ = Describe("RunningKernelVersion", func() {
	It("reports a non-empty release string", func() {
		v, err := utils.RunningKernelVersion()
		Expect(err).ToNot(HaveOccurred())
		Expect(v).ToNot(BeEmpty())
	})
})

var _ = Describe("CommandWithPath", func() {
	It("runs through the shell with a sane PATH", func() {
		out, err := utils.CommandWithPath("echo hello")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("hello"))
	})
})
