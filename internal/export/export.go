// 包 export 提供发布流程使用的文件操作：写文本、写 JSON、复制文件/目录树、复制元数据。
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// WriteText 以 UTF-8 文本写入文件（覆盖）。
func WriteText(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteJSON 将 v 序列化为 4 空格缩进的 JSON 写入文件；json.RawMessage 会被重新缩进。
// 不转义 <、>、&，保证审计日志与 API 原文一致。
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ExpandUser 展开 ~、~/ 与 ~user/ 开头的路径；其余路径及未知用户原样返回。
func ExpandUser(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	name, rest := path[1:], ""
	if i := strings.IndexAny(name, `/\`); i >= 0 {
		name, rest = name[:i], name[i:]
	}
	var home string
	if name == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", path, err)
		}
		home = h
	} else {
		u, err := user.Lookup(name)
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			// 未知用户：与 shell 一致，保留原路径
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", path, err)
		}
		home = u.HomeDir
	}
	return filepath.Join(home, rest), nil
}

// CopyFile 复制单个文件，目标存在则覆盖。
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	return writeFrom(in, dst, 0o644)
}

// CopyFSFile 从 fs.FS（如嵌入资源）复制单个文件。
func CopyFSFile(fsys fs.FS, name, dst string) error {
	in, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer in.Close()
	return writeFrom(in, dst, 0o644)
}

// CopyTree 将 fsys 中 root 目录整棵复制到 dst（dst 不存在时创建）。
// 复制 OS 目录时传入 os.DirFS(src) 与 "."。
func CopyTree(fsys fs.FS, root, dst string) error {
	return fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", p, err)
		}
		target := filepath.Join(dst, filepath.FromSlash(relTo(root, p)))
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		if d.IsDir() {
			if err := os.MkdirAll(target, dirMode(info.Mode())); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		in, err := fsys.Open(p)
		if err != nil {
			return fmt.Errorf("open %s: %w", p, err)
		}
		defer in.Close()
		return writeFrom(in, target, fileMode(info.Mode()))
	})
}

// CopyStat 尽力将 src 的权限位与修改时间复制到 dst。
func CopyStat(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if err := os.Chmod(dst, fi.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Chtimes(dst, fi.ModTime(), fi.ModTime()); err != nil {
		return fmt.Errorf("chtimes %s: %w", dst, err)
	}
	return nil
}

func relTo(root, p string) string {
	if p == root {
		return ""
	}
	if root == "." {
		return p
	}
	return strings.TrimPrefix(p, root+"/")
}

func writeFrom(r io.Reader, dst string, mode fs.FileMode) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// 嵌入资源的权限位为只读（0444/0555），落盘时补上属主写权限。
func fileMode(m fs.FileMode) fs.FileMode { return m.Perm() | 0o600 }
func dirMode(m fs.FileMode) fs.FileMode  { return m.Perm() | 0o700 }
