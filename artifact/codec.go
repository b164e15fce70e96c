package artifact

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/rushteam/tabrec/core"
)

// encodePart 把 v 编码为 JSON 并 gzip 压缩，返回压缩数据与分片信息。
// 校验和针对未压缩的 JSON 计算。
func encodePart(name Part, v any) ([]byte, PartInfo, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, PartInfo{}, fmt.Errorf("encode %s: %w", name, err)
	}
	sum := sha256.Sum256(raw)

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	if _, err := gzw.Write(raw); err != nil {
		return nil, PartInfo{}, fmt.Errorf("compress %s: %w", name, err)
	}
	if err := gzw.Close(); err != nil {
		return nil, PartInfo{}, fmt.Errorf("finalize %s: %w", name, err)
	}
	return buf.Bytes(), PartInfo{
		Name:     name,
		Checksum: hex.EncodeToString(sum[:]),
		Size:     int64(buf.Len()),
		RawSize:  int64(len(raw)),
	}, nil
}

// decodePart 解压并校验分片，然后解码到 v。info 为空校验和时跳过校验（manifest 自身）。
func decodePart(data []byte, info PartInfo, v any) error {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return corrupt(info.Name, "decompress", err)
	}
	defer gzr.Close()

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return corrupt(info.Name, "decompress", err)
	}
	if info.Checksum != "" {
		sum := sha256.Sum256(raw)
		if got := hex.EncodeToString(sum[:]); got != info.Checksum {
			return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeCorrupt,
				fmt.Sprintf("artifact part %s: checksum mismatch: expected %s, got %s", info.Name, info.Checksum, got))
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return corrupt(info.Name, "decode", err)
	}
	return nil
}

func corrupt(p Part, op string, err error) error {
	return core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeCorrupt, fmt.Sprintf("artifact part %s: %s", p, op), err)
}
