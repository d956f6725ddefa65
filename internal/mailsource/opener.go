package mailsource

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Opener 用系统邮件客户端打开归档的 .eml 文件。
// 这是桌面端"在客户端里打开这封邮件"动作的跨平台落地。
type Opener struct {
	// command 覆盖默认打开命令；为空时按平台选择。
	command string
}

// NewOpener 创建打开器。command 可以带参数（按空白切分），
// .eml 路径追加在末尾。
func NewOpener(command string) *Opener {
	return &Opener{command: command}
}

// Open 调用外部程序打开 path 指向的 .eml 文件。
// 不等待程序退出：客户端窗口的生命周期与本进程无关。
func (o *Opener) Open(ctx context.Context, path string) error {
	name, args := o.resolve(path)
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s with %s: %w", path, name, err)
	}
	// 回收子进程，避免僵尸
	go func() { _ = cmd.Wait() }()
	return nil
}

func (o *Opener) resolve(path string) (string, []string) {
	if o.command != "" {
		parts := strings.Fields(o.command)
		return parts[0], append(parts[1:], path)
	}
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	default:
		return "xdg-open", []string{path}
	}
}
