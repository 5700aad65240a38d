//go:build linux

package main

import (
	"fmt"
	"unsafe"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"

	"rivoj/internal/judgeserver/sandbox"
)

const defaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// execTarget loads the seccomp policy and replaces this process with the
// target program. The exec string pointers are built before the filter so
// the execve rule can pin argv[0] to the configured path by address.
func execTarget(cfg sandbox.Config) error {
	exePtr, err := unix.BytePtrFromString(cfg.ExePath)
	if err != nil {
		return fmt.Errorf("encode exe path: %w", err)
	}
	argv := append([]string{cfg.ExePath}, cfg.Args...)
	argvPtrs, err := unix.SlicePtrFromStrings(argv)
	if err != nil {
		return fmt.Errorf("encode argv: %w", err)
	}
	env := cfg.Env
	if len(env) == 0 {
		env = []string{defaultPath}
	}
	envPtrs, err := unix.SlicePtrFromStrings(env)
	if err != nil {
		return fmt.Errorf("encode env: %w", err)
	}

	if err := applySeccompRule(cfg.SeccompRule, exePtr); err != nil {
		return err
	}

	_, _, errno := unix.Syscall(unix.SYS_EXECVE,
		uintptr(unsafe.Pointer(exePtr)),
		uintptr(unsafe.Pointer(&argvPtrs[0])),
		uintptr(unsafe.Pointer(&envPtrs[0])))
	return fmt.Errorf("execve %s: %v", cfg.ExePath, errno)
}

func applySeccompRule(rule string, exePtr *byte) error {
	switch rule {
	case "":
		return nil
	case "general":
		return loadGeneralRules(exePtr)
	case "c_cpp":
		return loadCCppRules(exePtr)
	default:
		return fmt.Errorf("unknown seccomp rule: %s", rule)
	}
}

// loadGeneralRules installs a blacklist policy for interpreted languages:
// everything is allowed except process creation, socket use and writes
// through open/openat, and execve is pinned to the configured binary.
func loadGeneralRules(exePtr *byte) error {
	filter, err := seccomp.NewFilter(seccomp.ActAllow)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	defer filter.Release()
	if err := filter.SetTsync(true); err != nil {
		return fmt.Errorf("set seccomp tsync: %w", err)
	}

	for _, name := range []string{"clone", "fork", "vfork", "kill", "execveat"} {
		if err := addRule(filter, name, seccomp.ActKillThread); err != nil {
			return err
		}
	}
	// errno instead of kill so interpreters probing for sockets at startup
	// fail gracefully.
	if err := addRule(filter, "socket", seccomp.ActErrno.SetReturnCode(int16(unix.EACCES))); err != nil {
		return err
	}

	exeCond, err := seccomp.MakeCondition(0, seccomp.CompareNotEqual, exeAddr(exePtr))
	if err != nil {
		return fmt.Errorf("make execve condition: %w", err)
	}
	if err := addRuleConditional(filter, "execve", seccomp.ActKillThread, exeCond); err != nil {
		return err
	}

	wrOnly, err := seccomp.MakeCondition(1, seccomp.CompareMaskedEqual, unix.O_WRONLY, unix.O_WRONLY)
	if err != nil {
		return fmt.Errorf("make open condition: %w", err)
	}
	rdwr, err := seccomp.MakeCondition(1, seccomp.CompareMaskedEqual, unix.O_RDWR, unix.O_RDWR)
	if err != nil {
		return fmt.Errorf("make open condition: %w", err)
	}
	atWrOnly, err := seccomp.MakeCondition(2, seccomp.CompareMaskedEqual, unix.O_WRONLY, unix.O_WRONLY)
	if err != nil {
		return fmt.Errorf("make openat condition: %w", err)
	}
	atRdwr, err := seccomp.MakeCondition(2, seccomp.CompareMaskedEqual, unix.O_RDWR, unix.O_RDWR)
	if err != nil {
		return fmt.Errorf("make openat condition: %w", err)
	}
	if err := addRuleConditional(filter, "open", seccomp.ActKillThread, wrOnly); err != nil {
		return err
	}
	if err := addRuleConditional(filter, "open", seccomp.ActKillThread, rdwr); err != nil {
		return err
	}
	if err := addRuleConditional(filter, "openat", seccomp.ActKillThread, atWrOnly); err != nil {
		return err
	}
	if err := addRuleConditional(filter, "openat", seccomp.ActKillThread, atRdwr); err != nil {
		return err
	}

	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

// loadCCppRules installs a whitelist policy for native binaries: only the
// syscalls a statically-shaped C/C++ program needs, read-only open, and a
// single execve of the configured binary.
func loadCCppRules(exePtr *byte) error {
	filter, err := seccomp.NewFilter(seccomp.ActKillThread)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	defer filter.Release()
	if err := filter.SetTsync(true); err != nil {
		return fmt.Errorf("set seccomp tsync: %w", err)
	}

	whitelist := []string{
		"read", "fstat", "mmap", "mprotect", "munmap", "uname",
		"arch_prctl", "brk", "access", "exit_group", "close",
		"readlink", "sysinfo", "write", "writev", "lseek",
	}
	for _, name := range whitelist {
		if err := addRule(filter, name, seccomp.ActAllow); err != nil {
			return err
		}
	}

	exeCond, err := seccomp.MakeCondition(0, seccomp.CompareEqual, exeAddr(exePtr))
	if err != nil {
		return fmt.Errorf("make execve condition: %w", err)
	}
	if err := addRuleConditional(filter, "execve", seccomp.ActAllow, exeCond); err != nil {
		return err
	}

	// open/openat allowed only when neither write bit is set.
	roOpen, err := seccomp.MakeCondition(1, seccomp.CompareMaskedEqual, unix.O_WRONLY|unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("make open condition: %w", err)
	}
	roOpenat, err := seccomp.MakeCondition(2, seccomp.CompareMaskedEqual, unix.O_WRONLY|unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("make openat condition: %w", err)
	}
	if err := addRuleConditional(filter, "open", seccomp.ActAllow, roOpen); err != nil {
		return err
	}
	if err := addRuleConditional(filter, "openat", seccomp.ActAllow, roOpenat); err != nil {
		return err
	}

	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func addRule(filter *seccomp.ScmpFilter, name string, action seccomp.ScmpAction) error {
	sc, err := seccomp.GetSyscallFromName(name)
	if err != nil {
		return fmt.Errorf("resolve syscall %s: %w", name, err)
	}
	if err := filter.AddRule(sc, action); err != nil {
		return fmt.Errorf("add seccomp rule for %s: %w", name, err)
	}
	return nil
}

func addRuleConditional(filter *seccomp.ScmpFilter, name string, action seccomp.ScmpAction, conds ...seccomp.ScmpCondition) error {
	sc, err := seccomp.GetSyscallFromName(name)
	if err != nil {
		return fmt.Errorf("resolve syscall %s: %w", name, err)
	}
	if err := filter.AddRuleConditional(sc, action, conds); err != nil {
		return fmt.Errorf("add seccomp rule for %s: %w", name, err)
	}
	return nil
}

func exeAddr(exePtr *byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(exePtr)))
}
