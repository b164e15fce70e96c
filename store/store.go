// Package store 提供 core.Store / core.KeyValueStore 的实现：
//
//   - MemoryStore：进程内，测试与单机 CLI
//   - RedisStore：生产 KV，支持 INCR / ZSET / HASH
//   - BadgerStore：嵌入式持久化 KV
//   - GCSStore：对象存储，只存 bundle 分片
//
// 接口定义在 core 包，此包只包含实现。
//
//	var blobs core.Store = store.NewMemoryStore()
//	var kv core.KeyValueStore = store.NewMemoryStore()
package store
