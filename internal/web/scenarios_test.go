// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/memory"
	"github.com/gatehouse/gatehouse/internal/client"
	"github.com/gatehouse/gatehouse/internal/web"
)

var cheapParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

// readJSON decodes a response body into a generic map.
func readJSON(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var out map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out
}

var _ = Describe("Auth API", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		users  *memory.UserRepository
		api    *client.Client
		store  *client.MemoryTokenStore
	)

	BeforeEach(func() {
		ctx = context.Background()

		hasher, err := auth.NewArgon2idHasher(cheapParams)
		Expect(err).NotTo(HaveOccurred())
		pool, err := auth.NewHashPool(hasher, 2)
		Expect(err).NotTo(HaveOccurred())
		key, err := auth.GenerateSigningKey()
		Expect(err).NotTo(HaveOccurred())
		tokens, err := auth.NewTokenService(auth.TokenServiceConfig{SigningKey: key, TTL: time.Hour})
		Expect(err).NotTo(HaveOccurred())

		users = memory.NewUserRepository()
		svc, err := auth.NewService(users, pool, tokens, auth.ServiceConfig{
			Lockout:     auth.DefaultLockoutPolicy(),
			Revocations: memory.NewRevocationList(),
		})
		Expect(err).NotTo(HaveOccurred())

		// Seed testuser with a stored hash of "password123".
		hash, err := hasher.Hash("password123")
		Expect(err).NotTo(HaveOccurred())
		seeded, err := auth.NewUser("testuser", hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(users.Create(ctx, seeded)).To(Succeed())

		server = httptest.NewServer(web.NewHandler(svc).Routes())
		DeferCleanup(server.Close)

		store = client.NewMemoryTokenStore("")
		api, err = client.New(server.URL, store)
		Expect(err).NotTo(HaveOccurred())
	})

	post := func(path string, body any) *http.Response {
		resp, err := api.Do(ctx, http.MethodPost, path, client.JSONBody(body), nil)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("registers a new user and returns a token", func() {
		resp := post(client.PathRegister, map[string]string{"username": "newuser", "password": "password123"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body := readJSON(resp)
		Expect(body).To(HaveKeyWithValue("token", Not(BeEmpty())))
		Expect(body).To(HaveKeyWithValue("user", HaveKeyWithValue("username", "newuser")))
		Expect(body["user"]).NotTo(HaveKey("password_hash"))
	})

	It("logs in a user against a stored hash", func() {
		resp := post(client.PathLogin, map[string]string{"username": "testuser", "password": "password123"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body := readJSON(resp)
		Expect(body).To(HaveKeyWithValue("token", Not(BeEmpty())))
		Expect(body).To(HaveKeyWithValue("user", HaveKeyWithValue("username", "testuser")))
	})

	It("rejects a wrong password with 401", func() {
		resp := post(client.PathLogin, map[string]string{"username": "testuser", "password": "wrongpassword"})
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(readJSON(resp)).To(HaveKeyWithValue("error", Not(BeEmpty())))
	})

	It("rejects a short password on register", func() {
		resp := post(client.PathRegister, map[string]string{"username": "newuser", "password": "123"})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(readJSON(resp)).To(HaveKeyWithValue("error", ContainSubstring("password")))
	})

	It("rejects a duplicate username with 409", func() {
		resp := post(client.PathRegister, map[string]string{"username": "TestUser", "password": "password123"})
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		Expect(readJSON(resp)).To(HaveKeyWithValue("code", auth.CodeUsernameTaken))
		Expect(users.Len()).To(Equal(1))
	})

	It("gives unknown users the same answer as wrong passwords", func() {
		wrong := post(client.PathLogin, map[string]string{"username": "testuser", "password": "wrongpassword"})
		unknown := post(client.PathLogin, map[string]string{"username": "nobody", "password": "wrongpassword"})
		Expect(unknown.StatusCode).To(Equal(wrong.StatusCode))
		Expect(readJSON(unknown)).To(Equal(readJSON(wrong)))
	})

	Describe("the auth client flow", func() {
		It("reports status across login and logout", func() {
			ac := client.NewAuthClient(api)

			ok, err := ac.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			_, err = ac.Login(ctx, "testuser", "password123")
			Expect(err).NotTo(HaveOccurred())

			ok, err = ac.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			me, err := ac.Me(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(me.Username).To(Equal("testuser"))

			revoked, err := store.Token(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(ac.Logout(ctx)).To(Succeed())
			Expect(store.Token(ctx)).To(BeEmpty())

			// The old token stays dead even if presented again.
			Expect(store.SetToken(ctx, revoked)).To(Succeed())
			ok, err = ac.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("outgoing headers", func() {
		var seen http.Header

		BeforeEach(func() {
			echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.Header.Clone()
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(http.StatusNoContent)
			}))
			DeferCleanup(echo.Close)

			var err error
			api, err = client.New(echo.URL, client.NewMemoryTokenStore(""))
			Expect(err).NotTo(HaveOccurred())
		})

		It("omits Authorization when no token is persisted", func() {
			resp, err := api.Do(ctx, http.MethodGet, "/anything", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(seen).NotTo(HaveKey("Authorization"))
		})

		It("omits Content-Type for a multipart payload", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("field", "value")).To(Succeed())
			Expect(mw.Close()).To(Succeed())

			resp, err := api.Do(ctx, http.MethodPost, "/upload", client.RawBody(&buf, ""), nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(seen).NotTo(HaveKey("Content-Type"))
		})
	})
})
