// Package zhclient holds the wire types of the Zero Hunger HTTP API and a
// small client for it.
//
// The server keeps the login in an HttpOnly session cookie, so the client
// carries a cookie jar and every call after Login runs as that user:
//
//	c, err := zhclient.New("http://localhost:8080")
//	if err != nil {
//		return err
//	}
//	state, err := c.Login(ctx, "donor@example.org", "secret")
//	if err != nil {
//		return err
//	}
//	if state.State == zhclient.StateSetupSecondFactor {
//		setup, _ := c.GenerateSecondFactor(ctx)
//		// show setup.QRCode, read a code from the user
//		_, err = c.EnableSecondFactor(ctx, code)
//	}
//	d, err := c.Donate(ctx, zhclient.DonationRequest{FoodType: "rice", Quantity: 10})
//
// Failed calls return *APIError carrying the status code, the server's
// message and any per-field validation messages.
package zhclient
