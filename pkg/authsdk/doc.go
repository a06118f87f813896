/*
Package authsdk is a Go client for the memberhub authentication service.

The service keeps the session in an HttpOnly cookie, so SDKClient carries a
cookie jar and every call after Login is authenticated by it:

	client, err := authsdk.NewSDKClient("https://members.example.org")
	if err != nil {
		return err
	}

	me, err := client.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		var apiErr *authsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == authsdk.CodeInvalidCredentials {
			// wrong identifier or password
		}
		return err
	}
	fmt.Println("logged in as", me.FullName, me.Roles)

	// Pick up role changes made since login.
	me, err = client.Refresh(ctx)

# Password reset

ForgotPassword mails a six digit code to the address; ResetPassword redeems it
once:

	_, err = client.ForgotPassword(ctx, "alice@example.org")
	err = client.ResetPassword(ctx, "alice@example.org", "042917", "new password")

# Errors

Every non-2xx response becomes an *APIError carrying the HTTP status, the
machine readable code and the user facing message from the response body.

# Thread Safety

SDKClient is safe for concurrent use, but all goroutines share one cookie jar
and therefore one session.
*/
package authsdk
