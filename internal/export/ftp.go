package export

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jlaffaye/ftp"
)

type FTPConfig struct {
	Addr     string // host:port
	User     string
	Password string
	Dir      string
}

// FTPUploader stores exports on an FTP server.
type FTPUploader struct {
	cfg FTPConfig
}

func NewFTPUploader(cfg FTPConfig) *FTPUploader {
	if cfg.User == "" {
		cfg.User = "anonymous"
		cfg.Password = "anonymous"
	}
	return &FTPUploader{cfg: cfg}
}

func (u *FTPUploader) Upload(ctx context.Context, name string, r io.Reader) error {
	conn, err := ftp.Dial(u.cfg.Addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(u.cfg.User, u.cfg.Password); err != nil {
		return fmt.Errorf("ftp login: %w", err)
	}
	if u.cfg.Dir != "" {
		if err := conn.ChangeDir(u.cfg.Dir); err != nil {
			return fmt.Errorf("ftp cwd %s: %w", u.cfg.Dir, err)
		}
	}
	if err := conn.Stor(name, r); err != nil {
		return fmt.Errorf("ftp stor %s: %w", name, err)
	}
	log.Printf("export: uploaded %s to %s%s", name, u.cfg.Addr, u.cfg.Dir)
	return nil
}
