package topology

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const sessionTimeout = 5 * time.Second

// Membership tracks live segment membership in ZooKeeper. Each running
// segment registers an ephemeral znode named by its index under
// <root>/segments; the new-cluster segment count is the number of registered
// segments at snapshot time.
type Membership struct {
	conn      *zk.Conn
	rootPath  string
	selfIndex int
}

// NewMembership connects to the given ZooKeeper ensemble.
// servers: ["zk1:2181", "zk2:2181"]
func NewMembership(servers []string, rootPath string, selfIndex int) (*Membership, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	return &Membership{
		conn:      conn,
		rootPath:  rootPath,
		selfIndex: selfIndex,
	}, nil
}

func (m *Membership) Close() error {
	m.conn.Close()
	return nil
}

func (m *Membership) waitConnected(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.conn.State() == zk.StateHasSession {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("zk: no session after %s", timeout)
}

func (m *Membership) ensurePath(path string) error {
	parts := strings.Split(path, "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = cur + "/" + p
		exists, _, err := m.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = m.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && err != zk.ErrNodeExists {
				return err
			}
		}
	}
	return nil
}

// RegisterSelf creates the ephemeral znode for this segment.
func (m *Membership) RegisterSelf() error {
	if err := m.waitConnected(10 * time.Second); err != nil {
		return err
	}

	if err := m.ensurePath(m.rootPath + "/segments"); err != nil {
		return fmt.Errorf("ensure segments path: %w", err)
	}

	nodePath := fmt.Sprintf("%s/segments/%d", m.rootPath, m.selfIndex)

	_, err := m.conn.Create(nodePath, nil, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return fmt.Errorf("create ephemeral segment node: %w", err)
	}

	slog.Info("registered segment", "path", nodePath)
	return nil
}

// readSegments reads the indices of live segments.
func (m *Membership) readSegments() ([]int, error) {
	children, _, err := m.conn.Children(m.rootPath + "/segments")
	if err != nil {
		return nil, fmt.Errorf("zk children: %w", err)
	}
	idxs := make([]int, 0, len(children))
	for _, c := range children {
		i, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("zk: bad segment znode %q: %w", c, err)
		}
		idxs = append(idxs, i)
	}
	return idxs, nil
}

// Snapshot reads live membership once and freezes it into a Topology. The
// new segment count is the number of registered segments; oldCount comes
// from the reshuffle plan.
func (m *Membership) Snapshot(oldCount int) (Topology, error) {
	idxs, err := m.readSegments()
	if err != nil {
		return Topology{}, err
	}
	return New(oldCount, len(idxs), m.selfIndex)
}
