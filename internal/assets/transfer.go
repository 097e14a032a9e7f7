package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strconv"
)

// Listen 打开座位专用的卡图端口
func Listen(host string, port int) (net.Listener, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("监听卡图端口 %d 失败: %w", port, err)
	}
	return l, nil
}

// Serve 在 l 上接受一个连接并写出卡图字节。
// 卡图不存在时连接被立即关闭，对端读到空内容。
func (c *Catalog) Serve(l net.Listener, name string) (int64, error) {
	conn, err := l.Accept()
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	src, err := c.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
		return 0, fmt.Errorf("打开卡图失败: %w", err)
	}
	defer func() { _ = src.Close() }()

	return io.Copy(conn, src)
}

// Fetch 在 l 上接受一个连接，读到 EOF 为止，并保存为 name
func (c *Catalog) Fetch(l net.Listener, name string) (string, error) {
	conn, err := l.Accept()
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()

	return c.Store(name, conn)
}
