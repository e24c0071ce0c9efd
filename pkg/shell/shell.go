package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/weberc2/blockfs/pkg/fs"
	. "github.com/weberc2/blockfs/pkg/types"
)

// Shell drives a filesystem through a line-oriented command loop. Input
// and output are plain readers/writers so sessions can be scripted in
// tests.
type Shell struct {
	fs     *fs.FileSystem
	out    io.Writer
	srcDir string
	dstDir string

	// stack of directories above the current one; empty means the
	// current directory is the root
	stack []frame
	cwd   *fs.Inode
}

type frame struct {
	name  string
	inode *fs.Inode
}

func New(fsys *fs.FileSystem, out io.Writer, srcDir, dstDir string) *Shell {
	return &Shell{
		fs:     fsys,
		out:    out,
		srcDir: srcDir,
		dstDir: dstDir,
		cwd:    fsys.Root(),
	}
}

// Run reads commands until exit or EOF, then flushes the cache. Command
// errors are printed and the loop continues.
func (sh *Shell) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(sh.out, "%s> ", sh.path())
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" {
			break
		}
		if err := sh.dispatch(fields[0], fields[1:]); err != nil {
			fmt.Fprintf(sh.out, "%s: %v\n", fields[0], err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	return sh.fs.SyncAll()
}

func (sh *Shell) path() string {
	var sb strings.Builder
	for _, f := range sh.stack {
		sb.WriteByte('/')
		sb.WriteString(f.name)
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}

func (sh *Shell) dispatch(cmd string, args []string) error {
	switch cmd {
	case "ls":
		return sh.ls()
	case "cat":
		return sh.cat(args)
	case "touch":
		return sh.create(args, InodeTypeFile)
	case "mkdir":
		return sh.create(args, InodeTypeDirectory)
	case "rm":
		return sh.rm(args)
	case "cd":
		return sh.cd(args)
	case "chname":
		return sh.chname(args)
	case "set":
		return sh.set(args)
	case "get":
		return sh.get(args)
	case "fmt":
		return sh.format()
	case "sync":
		return sh.fs.SyncAll()
	default:
		return fmt.Errorf("unknown command `%s`", cmd)
	}
}

func (sh *Shell) ls() error {
	names, err := sh.cwd.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(sh.out, name)
	}
	return nil
}

func (sh *Shell) cat(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: cat NAME [OFFSET [LEN]]")
	}
	file, err := sh.cwd.Find(args[0])
	if err != nil {
		return err
	}
	size, err := file.Size()
	if err != nil {
		return err
	}
	offset := 0
	length := int(size)
	if len(args) > 1 {
		if offset, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("parsing offset `%s`: %w", args[1], err)
		}
		if offset < 0 {
			return fmt.Errorf("offset `%d` is negative", offset)
		}
		length = int(size) - offset
	}
	if len(args) > 2 {
		if length, err = strconv.Atoi(args[2]); err != nil {
			return fmt.Errorf("parsing length `%s`: %w", args[2], err)
		}
	}
	if length < 0 {
		length = 0
	}
	buf := make([]byte, length)
	n, err := file.Read(offset, buf)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, string(buf[:n]))
	return nil
}

func (sh *Shell) create(args []string, t InodeType) error {
	if len(args) < 1 {
		return errors.New("missing name")
	}
	_, err := sh.cwd.Create(args[0], t)
	return err
}

func (sh *Shell) rm(args []string) error {
	if len(args) < 1 {
		return errors.New("missing name")
	}
	return removeAll(sh.cwd, args[0])
}

// removeAll removes dir's named child, emptying child directories
// depth-first.
func removeAll(dir *fs.Inode, name string) error {
	child, err := dir.Find(name)
	if err != nil {
		return err
	}
	isDir, err := child.IsDir()
	if err != nil {
		return err
	}
	if isDir {
		names, err := child.List()
		if err != nil {
			return err
		}
		for _, n := range names {
			if err := removeAll(child, n); err != nil {
				return err
			}
		}
	}
	return dir.Remove(name)
}

func (sh *Shell) cd(args []string) error {
	if len(args) < 1 {
		sh.stack = nil
		sh.cwd = sh.fs.Root()
		return nil
	}
	path := args[0]
	stack := sh.stack
	cwd := sh.cwd
	if strings.HasPrefix(path, "/") {
		stack = nil
		cwd = sh.fs.Root()
	}
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				cwd = stack[len(stack)-1].inode
				stack = stack[:len(stack)-1]
			}
		default:
			next, err := cwd.Find(part)
			if err != nil {
				return err
			}
			isDir, err := next.IsDir()
			if err != nil {
				return err
			}
			if !isDir {
				return fmt.Errorf("entering `%s`: %w", part, fs.NotDirectoryErr)
			}
			stack = append(stack, frame{name: part, inode: cwd})
			cwd = next
		}
	}
	sh.stack = stack
	sh.cwd = cwd
	return nil
}

func (sh *Shell) chname(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: chname OLD NEW")
	}
	return sh.cwd.Rename(args[0], args[1])
}

// set copies every regular host file in the source directory into the
// current directory.
func (sh *Shell) set(args []string) error {
	dir := sh.srcDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no source directory")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading source directory `%s`: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading host file `%s`: %w", entry.Name(), err)
		}
		file, err := sh.cwd.Create(entry.Name(), InodeTypeFile)
		if err != nil {
			return err
		}
		if _, err := file.Write(0, data); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "set %s (%d bytes)\n", entry.Name(), len(data))
	}
	return nil
}

// get copies every file in the current directory out to the target host
// directory.
func (sh *Shell) get(args []string) error {
	dir := sh.dstDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no target directory")
	}
	names, err := sh.cwd.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		file, err := sh.cwd.Find(name)
		if err != nil {
			return err
		}
		if isDir, err := file.IsDir(); err != nil {
			return err
		} else if isDir {
			continue
		}
		size, err := file.Size()
		if err != nil {
			return err
		}
		buf := make([]byte, size)
		if _, err := file.Read(0, buf); err != nil {
			return err
		}
		if err := os.WriteFile(
			filepath.Join(dir, name),
			buf,
			0644,
		); err != nil {
			return fmt.Errorf("writing host file `%s`: %w", name, err)
		}
		fmt.Fprintf(sh.out, "get %s (%d bytes)\n", name, size)
	}
	return nil
}

// format empties the filesystem by removing everything under the root.
func (sh *Shell) format() error {
	sh.stack = nil
	sh.cwd = sh.fs.Root()
	names, err := sh.cwd.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := removeAll(sh.cwd, name); err != nil {
			return err
		}
	}
	return nil
}
