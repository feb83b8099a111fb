// Package exchange реализует клиента OKX: REST вызовы, публичный поток
// цен и переподключение WebSocket.
package exchange

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// Таймауты REST клиента. Торговые вызовы чувствительны к хвостовым
// задержкам, поэтому лимиты на каждую фазу запроса, а не только общий.
const (
	httpDialTimeout     = 5 * time.Second
	httpTLSTimeout      = 5 * time.Second
	httpHeaderTimeout   = 10 * time.Second
	httpTotalTimeout    = 30 * time.Second
	httpIdleConnTimeout = 90 * time.Second
	httpKeepAlive       = 30 * time.Second
	httpMaxIdleConns    = 100
	httpMaxIdlePerHost  = 10
	httpMaxConnsPerHost = 20
)

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once
)

// sharedHTTPClient возвращает общий HTTP клиент приложения.
// Один connection pool на процесс: все REST вызовы идут на один хост,
// и переиспользование TLS сессий заметно снижает задержку.
func sharedHTTPClient() *http.Client {
	sharedClientOnce.Do(func() {
		sharedClient = &http.Client{
			Transport: newPooledTransport(),
			Timeout:   httpTotalTimeout,
		}
	})
	return sharedClient
}

func newPooledTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   httpDialTimeout,
		KeepAlive: httpKeepAlive,
	}

	return &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        httpMaxIdleConns,
		MaxIdleConnsPerHost: httpMaxIdlePerHost,
		MaxConnsPerHost:     httpMaxConnsPerHost,
		IdleConnTimeout:     httpIdleConnTimeout,

		TLSHandshakeTimeout: httpTLSTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		// Ответы биржи небольшие, сжатие только добавляет задержку
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: httpHeaderTimeout,
	}
}
